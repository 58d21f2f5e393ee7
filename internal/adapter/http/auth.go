package http

import (
	"context"
	"net/http"
	"strings"
)

// User is the authenticated caller. Authentication is a development mock: the
// identity comes from the x-user-id header and defaults to citizen1 so local
// clients work without any setup.
type User struct {
	ID   string
	Role string
}

type userContextKey struct{}

const defaultUserID = "citizen1"

// withAuth resolves the caller from the x-user-id header and stores it on the
// request context.
func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("x-user-id"))
		if id == "" {
			id = defaultUserID
		}

		role := "citizen"
		if id == "admin" {
			role = "admin"
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, User{ID: id, Role: role})
		next(w, r.WithContext(ctx))
	}
}

// UserFromContext returns the authenticated user. Handlers behind withAuth
// can rely on a populated user.
func UserFromContext(ctx context.Context) User {
	if u, ok := ctx.Value(userContextKey{}).(User); ok {
		return u
	}
	return User{ID: defaultUserID, Role: "citizen"}
}

// canModify reports whether u may edit or delete the given record.
func canModify(u User, ownerID string) bool {
	return u.Role == "admin" || u.ID == ownerID
}
