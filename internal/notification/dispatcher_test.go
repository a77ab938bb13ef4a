package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/mealplan/internal/notification"
	"github.com/smallbiznis/mealplan/internal/notification/mocks"
	"github.com/smallbiznis/mealplan/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatchSwallowsGatewayErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockGateway(ctrl)
	core, logs := observer.New(zap.WarnLevel)

	gateway.EXPECT().
		Notify(gomock.Any(), snowflake.ID(7), notification.KindLowBalance, gomock.Any()).
		Return(errors.New("smtp down"))

	d := notification.NewDispatcher(notification.DispatcherParams{Gateway: gateway, Log: zap.New(core)})
	d.Dispatch(context.Background(), 7, notification.KindLowBalance, notification.Payload{PlanID: 1, Required: 1200, Available: 1000})

	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
}

func TestDispatchSurvivesCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockGateway(ctrl)

	gateway.EXPECT().
		Notify(gomock.Any(), gomock.Any(), notification.KindOrderProcessed, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ snowflake.ID, _ notification.Kind, _ notification.Payload) error {
			return ctx.Err()
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	core, logs := observer.New(zap.WarnLevel)
	d := notification.NewDispatcher(notification.DispatcherParams{Gateway: gateway, Log: zap.New(core)})
	d.Dispatch(ctx, 7, notification.KindOrderProcessed, notification.Payload{})

	assert.Zero(t, logs.Len())
}

type recordingProvider struct {
	email.NoOpProvider
	to       []string
	template string
	data     map[string]any
}

func (p *recordingProvider) SendTemplate(_ context.Context, to []string, templateName string, data map[string]any) error {
	p.to = to
	p.template = templateName
	p.data = data
	return nil
}

func TestEmailGatewayUsesContactEmail(t *testing.T) {
	provider := &recordingProvider{}
	g := notification.NewEmailGateway(provider, zap.NewNop())

	err := g.Notify(context.Background(), 7, notification.KindPlanDeactivated, notification.Payload{
		PlanName:     "Lunch",
		ContactEmail: "ada@example.com",
		Reason:       "max_retries",
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, provider.to)
	assert.Equal(t, "plan_deactivated", provider.template)
	assert.Equal(t, "max_retries", provider.data["reason"])

	provider.to = nil
	assert.NoError(t, g.Notify(context.Background(), 7, notification.KindPlanDeactivated, notification.Payload{}))
	assert.Nil(t, provider.to)
}
