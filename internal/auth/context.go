// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating auth info via context

package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when an operation is attempted without a valid
// caller identity.
var ErrUnauthorized = errors.New("unauthorized")

// Identity holds the authenticated caller information extracted from a
// request. Identity resolution itself is the external provider's job; the
// gateway only consumes the verified result.
type Identity struct {
	UserID string
	Role   string
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}

// Require retrieves the Identity from the context, returning ErrUnauthorized
// when no caller identity was resolved.
func Require(ctx context.Context) (*Identity, error) {
	id := FromContext(ctx)
	if id == nil {
		return nil, ErrUnauthorized
	}
	return id, nil
}
