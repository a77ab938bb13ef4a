package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/providers/email"
	"go.uber.org/zap"
)

var subjects = map[Kind]string{
	KindOrderProcessed:   "Your meal plan order is confirmed",
	KindLowBalance:       "Your wallet balance is low",
	KindPlanDeactivated:  "Your meal plan has been deactivated",
	KindUpcomingDelivery: "Upcoming meal plan delivery",
}

// EmailGateway renders one template per kind and sends it to the plan's contact email.
type EmailGateway struct {
	provider email.Provider
	log      *zap.Logger
}

func NewEmailGateway(provider email.Provider, log *zap.Logger) *EmailGateway {
	return &EmailGateway{provider: provider, log: log.Named("notification.email")}
}

func (g *EmailGateway) Notify(ctx context.Context, ownerID snowflake.ID, kind Kind, payload Payload) error {
	if payload.ContactEmail == "" {
		g.log.Debug("no contact email, notification skipped",
			zap.String("kind", string(kind)),
			zap.String("owner_id", ownerID.String()),
		)
		return nil
	}
	return g.provider.SendTemplate(ctx, []string{payload.ContactEmail}, string(kind), templateData(kind, payload))
}

func templateData(kind Kind, payload Payload) map[string]any {
	data := map[string]any{
		"subject":      subjects[kind],
		"plan_name":    payload.PlanName,
		"order_number": payload.OrderNumber,
		"amount":       payload.Amount,
		"required":     payload.Required,
		"available":    payload.Available,
		"reason":       payload.Reason,
		"delivery_at":  "",
	}
	if payload.DeliveryAt != nil {
		data["delivery_at"] = payload.DeliveryAt.Format("Mon, 02 Jan 2006 15:04")
	} else if payload.DueDate != nil {
		data["delivery_at"] = payload.DueDate.Format("Mon, 02 Jan 2006")
	}
	return data
}

