package store

import (
	"context"

	"github.com/JonMunkholm/sheetstore/internal/logging"
)

type contextKey string

const (
	ctxKeyActor     contextKey = "audit_actor"
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
)

// DefaultActor is recorded when no actor is attached to the context.
const DefaultActor = "system"

// ContextWithActor attributes mutations made with ctx to actor. The actor
// also appears on every log line written through logging.FromContext.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	ctx = logging.With(ctx, "actor", actor)
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFromContext returns the actor for audit entries.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

// ContextWithRequestMetadata adds the client address and user agent recorded
// in audit details.
func ContextWithRequestMetadata(ctx context.Context, ip, userAgent string) context.Context {
	if ip != "" {
		ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, userAgent)
	}
	return ctx
}

func requestMetadata(ctx context.Context) (ip, userAgent string) {
	ip, _ = ctx.Value(ctxKeyIPAddress).(string)
	userAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return ip, userAgent
}
