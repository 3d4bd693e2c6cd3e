package surrealrevision

import "context"

type userKey struct{}

// WithUser returns a copy of ctx that carries the acting user.
// Passing a nil user marks the request as anonymous.
func WithUser(ctx context.Context, user any) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the acting user stored by WithUser.
func UserFromContext(ctx context.Context) (any, bool) {
	user := ctx.Value(userKey{})
	return user, user != nil
}
