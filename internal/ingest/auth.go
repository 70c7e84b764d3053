package ingest

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader is the header checked for the shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

// AuthError reports a missing or mismatched shared secret.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "webhook authentication failed: " + e.Reason
}

// CheckSecret validates r against secret. An empty secret disables the
// check. The secret may be presented in the X-Webhook-Secret header, the
// Authorization header (raw or as a bearer token), or the "secret" query
// parameter; it must match exactly.
func CheckSecret(r *http.Request, secret string) error {
	if secret == "" {
		return nil
	}

	candidates := []string{
		r.Header.Get(SecretHeader),
		r.URL.Query().Get("secret"),
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		candidates = append(candidates, auth)
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			candidates = append(candidates, auth[7:])
		}
	}

	presented := false
	for _, c := range candidates {
		if c == "" {
			continue
		}
		presented = true
		if subtle.ConstantTimeCompare([]byte(c), []byte(secret)) == 1 {
			return nil
		}
	}
	if !presented {
		return &AuthError{Reason: "secret missing"}
	}
	return &AuthError{Reason: "secret mismatch"}
}
