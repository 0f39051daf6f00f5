package payment

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ManualGateway settles payments collected outside a provider (cash on
// delivery, in-store card terminal). Every capture succeeds with a generated
// reference; a repeated idempotency key returns the first reference.
type ManualGateway struct {
	mu      sync.Mutex
	idGen   func() string
	settled map[string]string
}

func NewManualGateway() *ManualGateway {
	return &ManualGateway{
		idGen:   func() string { return ulid.Make().String() },
		settled: make(map[string]string),
	}
}

func (g *ManualGateway) AuthorizeCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return CaptureResult{}, err
	}
	return CaptureResult{Success: true, TransactionID: g.reference("man_", req.IdempotencyKey)}, nil
}

func (g *ManualGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return RefundResult{}, err
	}
	return RefundResult{Success: true, RefundID: g.reference("mre_", req.IdempotencyKey)}, nil
}

func (g *ManualGateway) reference(prefix, key string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if key != "" {
		if ref, ok := g.settled[key]; ok {
			return ref
		}
	}
	ref := prefix + g.idGen()
	if key != "" {
		g.settled[key] = ref
	}
	return ref
}
