package middleware

import (
	"crypto/subtle"
	"net/http"

	"pricetracker/pkg/apierror"
	"pricetracker/pkg/response"
)

// SecretTokenHeader is set by Telegram on webhook deliveries when the
// webhook was registered with a secret_token.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret rejects deliveries that do not carry the configured secret.
// An empty secret disables the check.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SecretTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Error(w, apierror.Unauthorized("invalid webhook secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
