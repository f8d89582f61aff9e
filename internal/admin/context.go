package admin

import "context"

type ctxKey struct{}

func WithAdmin(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the admin attached by the auth middleware, if any.
func FromContext(ctx context.Context) (*Admin, bool) {
	a, ok := ctx.Value(ctxKey{}).(*Admin)
	return a, ok && a != nil
}
