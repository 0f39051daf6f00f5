package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/events"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
)

// FinalizeCommand carries the weighed grams of every variable-weight item.
type FinalizeCommand struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Weights map[uuid.UUID]int64
}

// Finalize records actual weights, reprices the order and saves it. A rejected
// weight set leaves the stored order untouched.
func (s *OrderService) Finalize(ctx context.Context, cmd FinalizeCommand) (o *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Finalize", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
		attribute.Int("order.weights", len(cmd.Weights)),
	))
	defer func() { endSpan(span, err) }()

	o, err = s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	weights := make(map[uuid.UUID]money.Weight, len(cmd.Weights))
	for id, g := range cmd.Weights {
		weights[id] = money.Weight(g)
	}
	result, err := o.FinalizeWeights(weights, s.policy, s.clock(), cmd.ActorID)
	if err != nil {
		s.metrics.ObserveFinalization("rejected")
		return nil, err
	}
	if err := s.save(ctx, o); err != nil {
		s.metrics.ObserveFinalization("error")
		return nil, err
	}

	delta := result.Delta()
	s.metrics.ObserveFinalization("success")
	s.logger.Info("order weights finalized",
		zap.Stringer("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.Stringer("estimated_total", result.EstimatedTotal),
		zap.Stringer("final_total", result.FinalTotal),
		zap.Stringer("delta", delta))
	s.emit(ctx, o, events.NameWeightsFinalized, events.WeightsFinalized{
		OrderID:        o.ID,
		EstimatedTotal: result.EstimatedTotal.Minor(),
		FinalTotal:     result.FinalTotal.Minor(),
		Delta:          delta.Minor(),
		Currency:       o.Currency,
	})
	return o, nil
}
