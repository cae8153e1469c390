// Package middleware provides the HTTP middleware chain of the intake gateway.
package middleware

import (
	"encoding/json"
	"net/http"

	"duck-intake/internal/credential"
	"duck-intake/internal/domain"
	"duck-intake/internal/metrics"
)

// IntakeAuth returns middleware that admits a request only when its
// Authorization header grants write access to the collection named by
// collectionOf. Every denial is a 403 with a JSON body.
func IntakeAuth(gate *credential.Gate, collectionOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			collection := collectionOf(r)
			header := r.Header.Get("Authorization")

			decision := gate.Check(header, collection)
			metrics.CounterRequests.WithLabelValues(decision.String()).Inc()
			if !decision.Allowed() {
				writeForbidden(w)
				return
			}

			token, _ := gate.Token(header)
			ctx := domain.WithCredential(r.Context(), domain.ContextCredential{
				KeyPrefix:  domain.KeyPrefix(token),
				Collection: collection,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    403,
		"message": "forbidden",
	})
}
