package notification

import (
	"github.com/smallbiznis/mealplan/internal/config"
	"github.com/smallbiznis/mealplan/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(NewGateway),
	fx.Provide(NewDispatcher),
)

// NewGateway picks email delivery when SMTP is configured and logging otherwise.
func NewGateway(cfg config.Config, provider email.Provider, log *zap.Logger) Gateway {
	if cfg.Email.Enabled && cfg.Email.SMTPHost != "" {
		return NewEmailGateway(provider, log)
	}
	return NewLogGateway(log)
}
