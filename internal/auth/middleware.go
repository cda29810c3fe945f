package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrNoSession = errors.New("session not found")

// SessionStore resolves a bearer token into a principal.
type SessionStore interface {
	Lookup(ctx context.Context, token string) (Principal, error)
}

// Middleware attaches the principal for requests with a known bearer token.
// Requests without one continue anonymously; handlers decide whether that is
// acceptable.
func Middleware(store SessionStore, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := store.Lookup(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					log.WithError(err).Warn("session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
