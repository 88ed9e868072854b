// Package claims carries the caller identity through the request context.
// The identity is asserted by the gateway in front of the service.
package claims

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var ErrMissing = errors.New("claim value missing from context")

type Claims struct {
	UserID string
	Role   string
}

// ParseRole normalizes a role name. Anything but an admin is a user.
func ParseRole(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, ErrMissing
	}
	return v, nil
}

func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.Role == RoleAdmin
}

func IsUser(ctx context.Context, id string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.UserID == id
}

// CanModify reports whether the caller owns a resource of ownerID or is an
// admin.
func CanModify(ctx context.Context, ownerID string) bool {
	return IsUser(ctx, ownerID) || IsAdmin(ctx)
}
