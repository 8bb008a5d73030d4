// Package userctx carries the authenticated user through a request's
// context.Context so lower layers can attribute their work without a
// dependency on the HTTP stack.
package userctx

import "context"

type contextKey struct{}

// WithUser returns a context carrying the authenticated username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, username)
}

// FromContext returns the authenticated username, if any.
func FromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(contextKey{}).(string)
	if !ok || username == "" {
		return "", false
	}
	return username, true
}
