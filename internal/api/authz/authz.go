package authz

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleAdmin    = "admin"
	RoleResident = "resident"
)

type AuthUser struct {
	ID         int64
	Email      string
	Role       string
	IsApproved bool
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored
// value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// IsAdmin reports whether the given AuthUser is an administrator.
func IsAdmin(user *AuthUser) bool {
	return user != nil && user.Role == RoleAdmin
}

// RequireUser ensures an approved authenticated user is present.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if !user.IsApproved {
		return nil, ErrForbidden
	}
	return user, nil
}

// RequireAdmin ensures the caller is an approved administrator.
func RequireAdmin(ctx context.Context) (*AuthUser, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return user, nil
}
