package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

type mapSessions map[string]Principal

func (m mapSessions) Lookup(_ context.Context, token string) (Principal, error) {
	if token == "broken" {
		return Principal{}, errors.New("redis down")
	}
	p, ok := m[token]
	if !ok {
		return Principal{}, ErrNoSession
	}
	return p, nil
}

func TestMiddleware(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := mapSessions{"tok-1": {ID: "u1", Role: RoleAdmin}}

	tests := []struct {
		name   string
		header string
		wantID string
	}{
		{"no header", "", ""},
		{"known token", "Bearer tok-1", "u1"},
		{"lowercase scheme", "bearer tok-1", "u1"},
		{"unknown token", "Bearer nope", ""},
		{"store error", "Bearer broken", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(store, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if p, ok := FromContext(r.Context()); ok {
					got = p.ID
				}
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.wantID {
				t.Errorf("principal id = %q, want %q", got, tt.wantID)
			}
		})
	}
}
