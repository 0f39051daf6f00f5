package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/order"
)

// errorResponse is the single error envelope returned by every endpoint.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps an engine error to its HTTP status. Unknown errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := order.KindOf(err)
	status := errorStatus(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("request failed", zap.String("kind", kind), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{
		Error:     kind,
		Message:   msg,
		Status:    status,
		Retryable: order.IsRetryable(err),
	})
}

// writeBadRequest answers a malformed request before it reaches the service.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "InvalidInput",
		Message: msg,
		Status:  http.StatusBadRequest,
	})
}

func errorStatus(kind string) int {
	switch kind {
	case "IllegalTransition", "IllegalPaymentTransition", "WeightConfirmationRequired",
		"PaymentRequired", "NotAuthorized", "AlreadyFinalized", "ConcurrentModification":
		return http.StatusConflict
	case "CaptureError", "RefundError":
		return http.StatusBadGateway
	case "NotApplicable", "UnknownItem", "WeightOutOfRange", "IncompleteWeights":
		return http.StatusUnprocessableEntity
	case "NotFound":
		return http.StatusNotFound
	case "InvalidInput":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body into v. An empty body is accepted when optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
