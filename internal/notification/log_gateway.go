package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// LogGateway writes notices to the log. It is used when no email transport is configured.
type LogGateway struct {
	log *zap.Logger
}

func NewLogGateway(log *zap.Logger) *LogGateway {
	return &LogGateway{log: log.Named("notification.log")}
}

func (g *LogGateway) Notify(ctx context.Context, ownerID snowflake.ID, kind Kind, payload Payload) error {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("owner_id", ownerID.String()),
		zap.String("plan_id", payload.PlanID.String()),
	}
	if payload.OrderNumber != "" {
		fields = append(fields, zap.String("order_number", payload.OrderNumber))
	}
	if kind == KindLowBalance {
		fields = append(fields, zap.Int64("required", payload.Required), zap.Int64("available", payload.Available))
	}
	if payload.Reason != "" {
		fields = append(fields, zap.String("reason", payload.Reason))
	}
	g.log.Info("notification", fields...)
	return nil
}
