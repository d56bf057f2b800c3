package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("payout schema is not migrated")

// HealthCheck is healthy once the pool answers and the payout tables exist.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var present bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('seller_balances') IS NOT NULL`).Scan(&present); err != nil {
		return fmt.Errorf("postgres health query: %w", err)
	}
	if !present {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
