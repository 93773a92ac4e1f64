package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	HeaderBuyerID    = "X-Buyer-ID"
	HeaderAdminToken = "X-Admin-Token"
)

type ctxKey int

const buyerKey ctxKey = iota

// Buyer copies the caller-supplied buyer identity into the request context.
// Use cases reject an empty identity, so this never blocks.
func Buyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderBuyerID))
		next.ServeHTTP(w, r.WithContext(WithBuyerID(r.Context(), id)))
	})
}

func WithBuyerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, buyerKey, id)
}

func BuyerID(ctx context.Context) string {
	id, _ := ctx.Value(buyerKey).(string)
	return id
}

// AdminOnly rejects requests whose X-Admin-Token does not match token. An
// empty token locks the admin routes entirely.
func AdminOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAdminToken)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   map[string]string{"code": "UNAUTHORIZED", "message": "admin token required"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
