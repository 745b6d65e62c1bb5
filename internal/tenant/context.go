// context.go carries the resolved tenant pool through request.Context so
// handlers never look at headers themselves.
package tenant

import "context"

type ctxKey struct{} // unexported, collision-proof

// WithPool returns a copy of ctx carrying p.
func WithPool(ctx context.Context, p *Pool) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the pool stored by Middleware, or nil.
func FromContext(ctx context.Context) *Pool {
	p, _ := ctx.Value(ctxKey{}).(*Pool)
	return p
}
