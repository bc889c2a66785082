package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// WithUser resolves the caller's identity from the "user_id" cookie.
// Identity establishment itself is the Identity Provider's concern; this
// middleware only carries the already-issued id into the request context.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("user_id")
		if err != nil || c.Value == "" {
			http.Error(w, "missing user_id", http.StatusUnauthorized)
			return
		}

		uid, err := uuid.Parse(c.Value)
		if err != nil || uid == uuid.Nil {
			http.Error(w, "invalid user_id", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the id placed into the context by WithUser.
func UserID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}
