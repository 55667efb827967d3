package auth

import "context"

type contextKey struct{}

// Identity is the authenticated owner of a request. Core operations take the
// owner id from here as an explicit parameter; there is no ambient request
// state beyond this value.
type Identity struct {
	UserID string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.UserID
}
