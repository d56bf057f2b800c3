package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"seller-payout-service/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendPath = "/v3/mail/send"

// SendGridNotifier emails challenge codes through the SendGrid v3 API.
type SendGridNotifier struct {
	apiKey   string
	host     string
	fromName string
	fromAddr string
	log      zerolog.Logger
}

func NewSendGridNotifier(apiKey, host, fromName, fromAddr string, log zerolog.Logger) *SendGridNotifier {
	return &SendGridNotifier{
		apiKey:   apiKey,
		host:     strings.TrimRight(host, "/"),
		fromName: fromName,
		fromAddr: fromAddr,
		log:      log,
	}
}

func (n *SendGridNotifier) Deliver(ctx context.Context, msg ports.ChallengeMessage) error {
	if msg.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := plainBody(msg)
	m := mail.NewV3Mail()
	m.Subject = subject(msg)
	m.SetFrom(mail.NewEmail(n.fromName, n.fromAddr))
	m.AddContent(mail.NewContent("text/plain", text))
	m.AddContent(mail.NewContent("text/html", "<p>"+strings.ReplaceAll(html.EscapeString(text), "\n\n", "</p><p>")+"</p>"))

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.Email))
	m.AddPersonalizations(p)

	request := sendgrid.GetRequest(n.apiKey, sendPath, n.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(m)

	response, err := sendgrid.API(request)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", response.StatusCode, response.Body)
	}

	n.log.Info().
		Str("seller_id", msg.SellerID).
		Str("purpose", string(msg.Purpose)).
		Int("status", response.StatusCode).
		Msg("challenge code emailed")
	return nil
}
