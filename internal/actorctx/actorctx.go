// Package actorctx carries the visitor behind a request through
// context.Context so services can log it without knowing about HTTP.
package actorctx

import "context"

type ctxKey struct{}

type Actor struct {
	RequestID string
	ClientIP  string
}

func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
