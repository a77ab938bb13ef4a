package context

import (
	"context"
	"strings"
)

type ownerIDKey struct{}
type planIDKey struct{}
type actorKey struct{}
type requestIDKey struct{}

type actor struct {
	actorType string
	actorID   string
}

// WithOwnerID stores the wallet/plan owner identifier for log correlation.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

func OwnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ownerIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithPlanID(ctx context.Context, planID string) context.Context {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return ctx
	}
	return context.WithValue(ctx, planIDKey{}, planID)
}

func PlanIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(planIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor records who initiated the work ("system"/"scheduler", "owner"/<id>).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.actorType, v.actorID
	}
	return "", ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
