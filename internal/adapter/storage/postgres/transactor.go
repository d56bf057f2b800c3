package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultLockTimeout = 5 * time.Second

// Transactor opens the read-committed transactions that per-seller critical
// sections run in. Serialization comes from the seller_balances row lock
// taken inside them; lock_timeout bounds how long a request queues behind
// another one for the same seller.
type Transactor struct {
	pool        Pool
	opts        pgx.TxOptions
	lockTimeout time.Duration
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{
		pool:        pool,
		opts:        pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		lockTimeout: defaultLockTimeout,
	}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, t.opts)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return tx, nil
}
