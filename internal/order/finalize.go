package order

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/monepiceriz/api/internal/money"
)

// WeightPolicy bounds the weights accepted at finalization.
type WeightPolicy struct {
	Min       money.Weight
	Max       money.Weight
	Reference money.Weight
}

// DefaultWeightPolicy accepts 100 g to 50 kg, priced per kilogram.
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{Min: 100, Max: 50000, Reference: money.Kilogram}
}

// Finalization is the outcome of a successful weight finalization.
type Finalization struct {
	EstimatedTotal money.Money
	FinalTotal     money.Money
}

// Delta is FinalTotal - EstimatedTotal.
func (f Finalization) Delta() money.Money {
	d, err := f.FinalTotal.Sub(f.EstimatedTotal)
	if err != nil {
		return money.Zero(f.FinalTotal.Currency())
	}
	return d
}

// FinalizeWeights records actual weights for every variable-weight item and
// reprices the order. Checks run in a fixed order and nothing is modified
// unless all of them pass.
func (o *Order) FinalizeWeights(weights map[uuid.UUID]money.Weight, policy WeightPolicy, at time.Time, actor uuid.UUID) (Finalization, error) {
	if !o.RequiresWeightConfirmation {
		return Finalization{}, errorf(ErrNotApplicable, "order %s has no variable-weight items", o.Number)
	}
	if o.Status.Terminal() {
		return Finalization{}, errorf(ErrNotApplicable, "order %s is %s", o.Number, o.Status)
	}
	if o.WeightConfirmedAt != nil {
		return Finalization{}, errorf(ErrAlreadyFinalized, "order %s weights were finalized at %s", o.Number, o.WeightConfirmedAt.Format(time.RFC3339))
	}

	variable := make(map[uuid.UUID]int, len(o.Items))
	for i, it := range o.Items {
		if it.VariableWeight {
			variable[it.ID] = i
		}
	}

	ids := make([]uuid.UUID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a].String() < ids[b].String() })

	for _, id := range ids {
		if _, ok := variable[id]; !ok {
			return Finalization{}, errorf(ErrUnknownItem, "item #%s is not a variable-weight item of order %s", id, o.Number)
		}
	}
	for _, id := range ids {
		w := weights[id]
		name := o.Items[variable[id]].ProductName
		if w < policy.Min {
			return Finalization{}, errorf(ErrWeightOutOfRange, "item #%s (%s) weight %s is below minimum %s", id, name, w, policy.Min)
		}
		if w > policy.Max {
			return Finalization{}, errorf(ErrWeightOutOfRange, "item #%s (%s) weight %s is above maximum %s", id, name, w, policy.Max)
		}
	}
	if len(weights) < len(variable) {
		missing := 0
		for id := range variable {
			if _, ok := weights[id]; !ok {
				missing++
			}
		}
		return Finalization{}, errorf(ErrIncompleteWeights, "order %s: %d of %d variable-weight items have no weight", o.Number, missing, len(variable))
	}

	draft := o.Clone()
	for id, idx := range variable {
		w := weights[id]
		draft.Items[idx].ActualWeight = &w
	}
	if err := draft.RecalculateTotal(policy.Reference); err != nil {
		return Finalization{}, err
	}

	result := Finalization{EstimatedTotal: o.TotalAmount, FinalTotal: draft.TotalAmount}
	confirmed := at
	draft.WeightConfirmedAt = &confirmed
	draft.UpdatedAt = at
	draft.AddNote(at, actor, "Weights finalized: "+result.EstimatedTotal.String()+" -> "+result.FinalTotal.String())

	o.Items = draft.Items
	o.TotalAmount = draft.TotalAmount
	o.WeightConfirmedAt = draft.WeightConfirmedAt
	o.Notes = draft.Notes
	o.UpdatedAt = draft.UpdatedAt
	return result, nil
}
