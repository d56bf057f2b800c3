package service

import (
	"context"
	"time"

	"seller-payout-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed bool
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

// runInline replaces goroutine hand-offs so tests observe them synchronously.
func runInline(f func()) { f() }

type nopMetrics struct{}

func (nopMetrics) KYCTransition(domain.KYCState) {}
func (nopMetrics) StaleCallback(string) {}
func (nopMetrics) ChallengeResult(domain.ChallengePurpose, string) {}
func (nopMetrics) WithdrawalTransition(domain.WithdrawalStatus) {}
func (nopMetrics) WithdrawnAmount(string, int64) {}
