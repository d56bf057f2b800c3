package external

import (
	"net/http"
	"strconv"
	"time"

	"seller-payout-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/opus-domini/fast-shot/constant/header"
)

// Credentials identify this service to a partner that verifies requests
// with the same HMAC scheme our callback routes use.
type Credentials struct {
	AccessKey string
	Secret    string
}

// signedHeaders returns the X-Caller-* header set for one outbound request.
// body must be the exact bytes that will be sent.
func signedHeaders(signer ports.SignatureService, creds Credentials, path string, body []byte, now time.Time) map[header.Type]string {
	ts := now.Unix()
	nonce := uuid.NewString()
	canonical := signer.BuildCanonicalString(http.MethodPost, path, ts, nonce, string(body))

	return map[header.Type]string{
		"Content-Type":        "application/json",
		"Accept":              "application/json",
		"X-Caller-Access-Key": creds.AccessKey,
		"X-Timestamp":         strconv.FormatInt(ts, 10),
		"X-Nonce":             nonce,
		"X-Signature":         signer.Sign(creds.Secret, canonical),
	}
}
