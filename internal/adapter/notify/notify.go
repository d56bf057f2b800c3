// Package notify delivers verification codes to sellers.
package notify

import (
	"errors"
	"fmt"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
)

// ErrNoRecipient is returned when the seller token carried no email address.
var ErrNoRecipient = errors.New("no delivery address for seller")

var purposeActions = map[domain.ChallengePurpose]string{
	domain.ChallengePurposeAddPayoutMethod:    "add a payout method",
	domain.ChallengePurposeDeletePayoutMethod: "remove a payout method",
	domain.ChallengePurposeWithdraw:           "confirm a withdrawal",
}

func subject(msg ports.ChallengeMessage) string {
	return fmt.Sprintf("Your verification code: %s", msg.Code)
}

func plainBody(msg ports.ChallengeMessage) string {
	action, ok := purposeActions[msg.Purpose]
	if !ok {
		action = "continue"
	}
	return fmt.Sprintf(
		"Use the code %s to %s.\n\nThe code expires at %s. If you did not request it, ignore this email and consider changing your password.",
		msg.Code, action, msg.ExpiresAt.UTC().Format(time.RFC1123),
	)
}
