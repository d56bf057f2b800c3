package notify

import (
	"context"

	"seller-payout-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// LogNotifier writes codes to the log. Development only.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Deliver(_ context.Context, msg ports.ChallengeMessage) error {
	n.log.Warn().
		Str("seller_id", msg.SellerID).
		Str("email", msg.Email).
		Str("purpose", string(msg.Purpose)).
		Str("code", msg.Code).
		Time("expires_at", msg.ExpiresAt).
		Msg("challenge code (log notifier, do not use in production)")
	return nil
}
