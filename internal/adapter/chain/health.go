package chain

import (
	"context"
	"time"
)

type blockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HealthCheck implements ports.HealthChecker for the RPC endpoint.
type HealthCheck struct {
	client blockNumberer
}

func NewHealthCheck(client blockNumberer) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := h.client.BlockNumber(ctx)
	return err
}

func (h *HealthCheck) Name() string {
	return "chain"
}
