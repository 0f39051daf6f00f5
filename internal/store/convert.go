package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
)

func createOrderParams(o *order.Order) database.CreateOrderParams {
	return database.CreateOrderParams{
		ID:                         o.ID,
		OrderNumber:                o.Number,
		Status:                     string(o.Status),
		PaymentStatus:              string(o.PaymentStatus),
		PaymentFlow:                string(o.PaymentFlow),
		DeliveryMethod:             string(o.DeliveryMethod),
		CustomerName:               o.Customer.Name,
		CustomerPhone:              o.Customer.Phone,
		CustomerEmail:              o.Customer.Email,
		Currency:                   o.Currency,
		TotalAmount:                decimalToNumeric(o.TotalAmount.Decimal()),
		RequiresWeightConfirmation: o.RequiresWeightConfirmation,
		WeightConfirmedAt:          timeToTimestamptz(o.WeightConfirmedAt),
		PaymentReference:           stringToText(o.PaymentReference),
		AuthorizationReference:     stringToText(o.AuthorizationReference),
		Version:                    o.Version,
		CreatedAt:                  o.CreatedAt,
		UpdatedAt:                  o.UpdatedAt,
	}
}

func updateOrderParams(o *order.Order) database.UpdateOrderParams {
	return database.UpdateOrderParams{
		ID:                     o.ID,
		Version:                o.Version,
		Status:                 string(o.Status),
		PaymentStatus:          string(o.PaymentStatus),
		TotalAmount:            decimalToNumeric(o.TotalAmount.Decimal()),
		WeightConfirmedAt:      timeToTimestamptz(o.WeightConfirmedAt),
		PaymentReference:       stringToText(o.PaymentReference),
		AuthorizationReference: stringToText(o.AuthorizationReference),
		UpdatedAt:              o.UpdatedAt,
		CaptureAttempts:        int32(o.CaptureAttempts),
		RefundAttempts:         int32(o.RefundAttempts),
	}
}

func createItemParams(orderID uuid.UUID, position int, it order.Item) database.CreateOrderItemParams {
	return database.CreateOrderItemParams{
		ID:                      it.ID,
		OrderID:                 orderID,
		Position:                int32(position),
		ProductSkuID:            it.ProductSkuID,
		ProductName:             it.ProductName,
		SkuName:                 it.SkuName,
		UnitPrice:               decimalToNumeric(it.UnitPrice.Decimal()),
		IsVariableWeight:        it.VariableWeight,
		OrderedWeightOrQuantity: it.OrderedQuantityOrWeight(),
		ActualWeight:            weightToInt8(it.ActualWeight),
		LineTotal:               decimalToNumeric(it.LineTotal.Decimal()),
	}
}

func toDomain(row database.Order, items []database.OrderItem, notes []database.OrderNote, transitions []database.OrderStatusTransition) (*order.Order, error) {
	total, err := money.FromDecimal(numericToDecimal(row.TotalAmount), row.Currency)
	if err != nil {
		return nil, fmt.Errorf("order %s total: %w", row.OrderNumber, err)
	}

	o := &order.Order{
		ID:             row.ID,
		Number:         row.OrderNumber,
		Status:         order.Status(row.Status),
		PaymentStatus:  order.PaymentStatus(row.PaymentStatus),
		PaymentFlow:    order.PaymentFlow(row.PaymentFlow),
		DeliveryMethod: order.DeliveryMethod(row.DeliveryMethod),
		Customer: order.Customer{
			Name:  row.CustomerName,
			Phone: row.CustomerPhone,
			Email: row.CustomerEmail,
		},
		Currency:                   row.Currency,
		TotalAmount:                total,
		RequiresWeightConfirmation: row.RequiresWeightConfirmation,
		WeightConfirmedAt:          timestamptzToTime(row.WeightConfirmedAt),
		PaymentReference:           textToString(row.PaymentReference),
		AuthorizationReference:     textToString(row.AuthorizationReference),
		Version:                    row.Version,
		CreatedAt:                  row.CreatedAt,
		UpdatedAt:                  row.UpdatedAt,
		CaptureAttempts:            int(row.CaptureAttempts),
		RefundAttempts:             int(row.RefundAttempts),
		Items:                      make([]order.Item, 0, len(items)),
	}

	for _, r := range items {
		unit, err := money.FromDecimal(numericToDecimal(r.UnitPrice), row.Currency)
		if err != nil {
			return nil, fmt.Errorf("item %s unit price: %w", r.ID, err)
		}
		line, err := money.FromDecimal(numericToDecimal(r.LineTotal), row.Currency)
		if err != nil {
			return nil, fmt.Errorf("item %s line total: %w", r.ID, err)
		}
		it := order.Item{
			ID:             r.ID,
			ProductSkuID:   r.ProductSkuID,
			ProductName:    r.ProductName,
			SkuName:        r.SkuName,
			UnitPrice:      unit,
			VariableWeight: r.IsVariableWeight,
			ActualWeight:   int8ToWeight(r.ActualWeight),
			LineTotal:      line,
		}
		if r.IsVariableWeight {
			it.EstimatedWeight = money.Weight(r.OrderedWeightOrQuantity)
		} else {
			it.Quantity = r.OrderedWeightOrQuantity
		}
		o.Items = append(o.Items, it)
	}

	for _, n := range notes {
		o.Notes = append(o.Notes, order.Note{At: n.CreatedAt, AuthorID: n.AuthorID, Text: n.Body})
	}
	for _, t := range transitions {
		o.Transitions = append(o.Transitions, order.StatusTransition{
			From:    order.Status(t.FromStatus),
			To:      order.Status(t.ToStatus),
			At:      t.CreatedAt,
			ActorID: t.ActorID,
			Note:    t.Note,
		})
	}
	o.MarkPersisted()
	return o, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func timeToTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timestamptzToTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func stringToText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func textToString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func weightToInt8(w *money.Weight) pgtype.Int8 {
	if w == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: w.Grams(), Valid: true}
}

func int8ToWeight(n pgtype.Int8) *money.Weight {
	if !n.Valid {
		return nil
	}
	w := money.Weight(n.Int64)
	return &w
}
