package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/auth"
	"github.com/monepiceriz/api/internal/enum"
	"github.com/monepiceriz/api/internal/middleware"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
	"github.com/monepiceriz/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (*order.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]*order.Order, error)
	AvailableStatuses(ctx context.Context, id uuid.UUID, locale string) ([]order.StatusOption, error)
	Transition(ctx context.Context, cmd service.TransitionCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd service.CancelCommand) (*order.Order, error)
	Finalize(ctx context.Context, cmd service.FinalizeCommand) (*order.Order, error)
	Capture(ctx context.Context, cmd service.CaptureCommand) (*service.CaptureReceipt, error)
	Refund(ctx context.Context, cmd service.RefundCommand) (*order.Order, error)
	ReconcilePayment(ctx context.Context, cmd service.ReconcileCommand) (*order.Order, error)
	AppendNote(ctx context.Context, orderID, actorID uuid.UUID, text string) (*order.Order, error)
}

// OrderHandler handles the back-office order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted behind Authenticate at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/statuses", h.AvailableStatuses)
		r.Patch("/status", h.UpdateStatus)
		r.Put("/weights", h.UpdateWeights)
		r.Post("/capture", h.Capture)
		r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager)).Post("/refund", h.Refund)
		r.Post("/payment", h.ReconcilePayment)
		r.Post("/cancel", h.Cancel)
		r.Post("/notes", h.AppendNote)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
	DeliveryMethod         string                   `json:"delivery_method"`
	PaymentFlow            string                   `json:"payment_flow"`
	AuthorizationReference string                   `json:"authorization_reference"`
	Notes                  string                   `json:"notes"`
	Items                  []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductSkuID         string `json:"product_sku_id"`
	ProductName          string `json:"product_name"`
	SkuName              string `json:"sku_name"`
	UnitPrice            int64  `json:"unit_price"`
	VariableWeight       bool   `json:"variable_weight"`
	Quantity             int64  `json:"quantity"`
	EstimatedWeightGrams int64  `json:"estimated_weight_grams"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type updateWeightsRequest struct {
	Weights []struct {
		ItemID string `json:"item_id"`
		Grams  int64  `json:"grams"`
	} `json:"weights"`
}

type captureRequest struct {
	TimeoutMS int64 `json:"timeout_ms"`
}

type refundRequest struct {
	Reason    string `json:"reason"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type reconcilePaymentRequest struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type noteRequest struct {
	Text string `json:"text"`
}

type orderResponse struct {
	ID                         uuid.UUID            `json:"id"`
	OrderNumber                string               `json:"order_number"`
	Status                     string               `json:"status"`
	PaymentStatus              string               `json:"payment_status"`
	PaymentFlow                string               `json:"payment_flow"`
	DeliveryMethod             string               `json:"delivery_method"`
	Customer                   customerResponse     `json:"customer"`
	Currency                   string               `json:"currency"`
	TotalAmount                string               `json:"total_amount"`
	RequiresWeightConfirmation bool                 `json:"requires_weight_confirmation"`
	WeightConfirmedAt          *time.Time           `json:"weight_confirmed_at"`
	PaymentReference           *string              `json:"payment_reference"`
	AuthorizationReference     *string              `json:"authorization_reference"`
	Version                    int64                `json:"version"`
	CreatedAt                  time.Time            `json:"created_at"`
	UpdatedAt                  time.Time            `json:"updated_at"`
	Items                      []orderItemResponse  `json:"items"`
	Notes                      []noteResponse       `json:"notes"`
	Transitions                []transitionResponse `json:"transitions"`
}

type customerResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type orderItemResponse struct {
	ID                   uuid.UUID `json:"id"`
	ProductSkuID         uuid.UUID `json:"product_sku_id"`
	ProductName          string    `json:"product_name"`
	SkuName              string    `json:"sku_name,omitempty"`
	UnitPrice            string    `json:"unit_price"`
	VariableWeight       bool      `json:"variable_weight"`
	Quantity             int64     `json:"quantity,omitempty"`
	EstimatedWeightGrams int64     `json:"estimated_weight_grams,omitempty"`
	ActualWeightGrams    *int64    `json:"actual_weight_grams"`
	LineTotal            string    `json:"line_total"`
}

type noteResponse struct {
	At       time.Time `json:"at"`
	AuthorID uuid.UUID `json:"author_id"`
	Text     string    `json:"text"`
}

type transitionResponse struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
	ActorID uuid.UUID `json:"actor_id"`
	Note    string    `json:"note,omitempty"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type statusOptionResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

type captureResponse struct {
	Order         orderResponse `json:"order"`
	TransactionID string        `json:"transaction_id"`
	Amount        string        `json:"amount"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(w, "items is required")
		return
	}

	cmd := service.CreateOrderCommand{
		ActorID: claims.UserID,
		Customer: order.Customer{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		},
		DeliveryMethod:         req.DeliveryMethod,
		PaymentFlow:            req.PaymentFlow,
		AuthorizationReference: req.AuthorizationReference,
		Note:                   req.Notes,
	}
	for i, it := range req.Items {
		skuID, err := uuid.Parse(it.ProductSkuID)
		if err != nil {
			writeBadRequest(w, "items["+strconv.Itoa(i)+"]: invalid product_sku_id")
			return
		}
		cmd.Items = append(cmd.Items, service.CreateItemCommand{
			ProductSkuID:         skuID,
			ProductName:          it.ProductName,
			SkuName:              it.SkuName,
			UnitPrice:            it.UnitPrice,
			VariableWeight:       it.VariableWeight,
			Quantity:             it.Quantity,
			EstimatedWeightGrams: it.EstimatedWeightGrams,
		})
	}

	o, err := h.svc.CreateOrder(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// List handles GET /orders?status=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var f order.ListFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		f.Status = &st
	}
	var err error
	if f.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	if f.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "invalid offset")
		return
	}
	if f.Limit <= 0 {
		f.Limit = service.DefaultListLimit
	}
	if f.Limit > service.MaxListLimit {
		f.Limit = service.MaxListLimit
	}

	orders, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := orderListResponse{Orders: make([]orderResponse, 0, len(orders)), Limit: f.Limit, Offset: f.Offset}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// AvailableStatuses handles GET /orders/{id}/statuses?lang=.
func (h *OrderHandler) AvailableStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	opts, err := h.svc.AvailableStatuses(r.Context(), id, requestLocale(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := make([]statusOptionResponse, 0, len(opts))
	for _, o := range opts {
		resp = append(resp, statusOptionResponse{Status: string(o.Status), Label: o.Label})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"statuses": resp})
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	o, err := h.svc.Transition(r.Context(), service.TransitionCommand{
		OrderID: id,
		Target:  target,
		ActorID: claims.UserID,
		Note:    req.Note,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateWeights handles PUT /orders/{id}/weights.
func (h *OrderHandler) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req updateWeightsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	weights := make(map[uuid.UUID]int64, len(req.Weights))
	for i, entry := range req.Weights {
		itemID, err := uuid.Parse(entry.ItemID)
		if err != nil {
			writeBadRequest(w, "weights["+strconv.Itoa(i)+"]: invalid item_id")
			return
		}
		if _, dup := weights[itemID]; dup {
			writeBadRequest(w, "weights["+strconv.Itoa(i)+"]: duplicate item_id")
			return
		}
		weights[itemID] = entry.Grams
	}

	o, err := h.svc.Finalize(r.Context(), service.FinalizeCommand{OrderID: id, ActorID: claims.UserID, Weights: weights})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Capture handles POST /orders/{id}/capture.
func (h *OrderHandler) Capture(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req captureRequest
	if err := decodeBody(r, &req, true); err != nil || req.TimeoutMS < 0 {
		writeBadRequest(w, "invalid request body")
		return
	}

	receipt, err := h.svc.Capture(r.Context(), service.CaptureCommand{
		OrderID: id,
		ActorID: claims.UserID,
		Timeout: time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{
		Order:         toOrderResponse(receipt.Order),
		TransactionID: receipt.TransactionID,
		Amount:        formatAmount(receipt.Amount),
	})
}

// Refund handles POST /orders/{id}/refund.
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := decodeBody(r, &req, true); err != nil || req.TimeoutMS < 0 {
		writeBadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.Refund(r.Context(), service.RefundCommand{
		OrderID: id,
		ActorID: claims.UserID,
		Reason:  req.Reason,
		Timeout: time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ReconcilePayment handles POST /orders/{id}/payment.
func (h *OrderHandler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req reconcilePaymentRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	target, err := order.ParsePaymentStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	o, err := h.svc.ReconcilePayment(r.Context(), service.ReconcileCommand{
		OrderID:   id,
		Target:    target,
		Reference: req.Reference,
		ActorID:   claims.UserID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.Cancel(r.Context(), service.CancelCommand{OrderID: id, ActorID: claims.UserID, Reason: req.Reason})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// AppendNote handles POST /orders/{id}/notes.
func (h *OrderHandler) AppendNote(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	o, err := h.svc.AppendNote(r.Context(), id, claims.UserID, req.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// --- Helpers ---

func (h *OrderHandler) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthenticated", Message: "not authenticated", Status: http.StatusUnauthorized})
		return nil, false
	}
	return claims, true
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// requestLocale prefers ?lang= and falls back to the first Accept-Language tag.
func requestLocale(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	accept := r.Header.Get("Accept-Language")
	if i := strings.IndexAny(accept, ",;"); i >= 0 {
		accept = accept[:i]
	}
	return strings.TrimSpace(accept)
}

func formatAmount(m money.Money) string {
	return m.Decimal().StringFixed(money.Exponent(m.Currency()))
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.Number,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentFlow:    string(o.PaymentFlow),
		DeliveryMethod: string(o.DeliveryMethod),
		Customer: customerResponse{
			Name:  o.Customer.Name,
			Phone: o.Customer.Phone,
			Email: o.Customer.Email,
		},
		Currency:                   o.Currency,
		TotalAmount:                formatAmount(o.TotalAmount),
		RequiresWeightConfirmation: o.RequiresWeightConfirmation,
		WeightConfirmedAt:          o.WeightConfirmedAt,
		PaymentReference:           o.PaymentReference,
		AuthorizationReference:     o.AuthorizationReference,
		Version:                    o.Version,
		CreatedAt:                  o.CreatedAt,
		UpdatedAt:                  o.UpdatedAt,
		Items:                      make([]orderItemResponse, 0, len(o.Items)),
		Notes:                      make([]noteResponse, 0, len(o.Notes)),
		Transitions:                make([]transitionResponse, 0, len(o.Transitions)),
	}
	for _, it := range o.Items {
		item := orderItemResponse{
			ID:             it.ID,
			ProductSkuID:   it.ProductSkuID,
			ProductName:    it.ProductName,
			SkuName:        it.SkuName,
			UnitPrice:      formatAmount(it.UnitPrice),
			VariableWeight: it.VariableWeight,
			LineTotal:      formatAmount(it.LineTotal),
		}
		if it.VariableWeight {
			item.EstimatedWeightGrams = it.EstimatedWeight.Grams()
		} else {
			item.Quantity = it.Quantity
		}
		if it.ActualWeight != nil {
			g := it.ActualWeight.Grams()
			item.ActualWeightGrams = &g
		}
		resp.Items = append(resp.Items, item)
	}
	for _, n := range o.Notes {
		resp.Notes = append(resp.Notes, noteResponse{At: n.At, AuthorID: n.AuthorID, Text: n.Text})
	}
	for _, t := range o.Transitions {
		resp.Transitions = append(resp.Transitions, transitionResponse{
			From:    string(t.From),
			To:      string(t.To),
			At:      t.At,
			ActorID: t.ActorID,
			Note:    t.Note,
		})
	}
	return resp
}
