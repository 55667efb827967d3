package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dlanger/studyden/internal/auth"
)

// RequireAuth validates the Authorization bearer token and populates the
// request Identity. Requests without a valid token get a 401.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			userID, err := auth.ParseToken(secret, token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		// WebSocket clients cannot set headers; accept ?token= there.
		return r.URL.Query().Get("token")
	}
	return header[len(prefix):]
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
