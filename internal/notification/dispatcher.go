package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

type DispatcherParams struct {
	fx.In

	Gateway    Gateway
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher is the fire-and-forget front of a Gateway: failures are logged
// and counted, never returned.
type Dispatcher struct {
	gateway     Gateway
	log         *zap.Logger
	obsMetrics  *obsmetrics.Metrics
	sendTimeout time.Duration
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return &Dispatcher{
		gateway:     p.Gateway,
		log:         p.Log.Named("notification.dispatcher"),
		obsMetrics:  p.ObsMetrics,
		sendTimeout: defaultSendTimeout,
	}
}

// Dispatch sends the notice detached from ctx cancellation so a tick that is
// winding down still delivers what it already committed.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID snowflake.ID, kind Kind, payload Payload) {
	if d == nil || d.gateway == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	if err := d.gateway.Notify(sendCtx, ownerID, kind, payload); err != nil {
		d.obsMetrics.RecordNotification(ctx, string(kind), "failed")
		logger.WithContext(ctx, d.log).Warn("notification failed",
			zap.String("kind", string(kind)),
			zap.String("owner_id", ownerID.String()),
			zap.String("plan_id", payload.PlanID.String()),
			zap.Error(err),
		)
		return
	}
	d.obsMetrics.RecordNotification(ctx, string(kind), "sent")
}
