// Package requestctx carries per-request caller details through context.
package requestctx

import (
	"context"
	"strings"
)

// ActorHeader names the HTTP header identifying the operator behind a request.
const ActorHeader = "X-Actor"

type actorContextKey struct{}

// WithActor stores the acting operator in context. Blank values are ignored.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting operator stored in context.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(actorContextKey{}).(string)
	return value
}

// ActorOr returns explicit when set, otherwise the actor stored in ctx.
func ActorOr(ctx context.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return ActorFromContext(ctx)
}
