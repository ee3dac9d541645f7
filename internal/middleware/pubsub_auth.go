package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed OIDC token for audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PubSubAuthMiddleware authenticates Pub/Sub push requests by their OIDC
// token. Requests are let through unchecked when isLocalDev is true, since
// the emulator sends no token.
func PubSubAuthMiddleware(isLocalDev bool, audience, expectedEmail string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return pubSubAuth(isLocalDev, audience, expectedEmail, idtoken.Validate, logger)
}

func pubSubAuth(isLocalDev bool, audience, expectedEmail string, validate TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("middleware", "pubsub_auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLocalDev {
				logger.Debug().Msg("Skipping Pub/Sub authentication for local environment")
				next.ServeHTTP(w, r)
				return
			}

			if audience == "" || expectedEmail == "" {
				logger.Error().Msg("Pub/Sub auth configured without an audience or expected email; denying request")
				http.Error(w, "Configuration error", http.StatusInternalServerError)
				return
			}

			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				logger.Warn().Msg("Missing or malformed Authorization header in Pub/Sub push request")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := validate(r.Context(), parts[1], audience)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to validate Pub/Sub JWT")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			email, _ := payload.Claims["email"].(string)
			if email != expectedEmail {
				logger.Warn().
					Str("token_email", email).
					Str("expected_email", expectedEmail).
					Msg("Pub/Sub JWT email does not match expected service account")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
