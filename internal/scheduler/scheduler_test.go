package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/notification"
	obscontext "github.com/smallbiznis/mealplan/internal/observability/context"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, h *harness) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     h.node,
		Clock:     h.clock,
		Processor: h.processor,
		Config:    Config{ReminderHour: 8},
	})
	require.NoError(t, err)
	return s
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	h := newHarness(t)
	s := newTestScheduler(t, h)

	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context, _ *jobRun) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{
		"service": "mealplan",
		"env":     "test",
		"job":     "timeout_job",
	}
	assert.Equal(t, float64(1), getCounterValue(t, h.registry, "mealplan_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "mealplan",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, float64(1), getCounterValue(t, h.registry, "mealplan_scheduler_job_errors_total", errorLabels))
}

func TestRunJobTagsContextWithRunID(t *testing.T) {
	h := newHarness(t)
	s := newTestScheduler(t, h)

	var runID, requestID string
	err := s.runJob(context.Background(), "tag_job", 0, time.Second, func(ctx context.Context, run *jobRun) error {
		runID = run.runID
		requestID = obscontext.RequestIDFromContext(ctx)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.Equal(t, runID, requestID)
}

func TestRunOnceChargesAndReminds(t *testing.T) {
	h := newHarness(t)
	s := newTestScheduler(t, h)
	h.fund(t, 5000, "fund-1")
	plan := h.createPlan(t, func(req *plandomain.CreatePlanRequest) {
		req.Schedule.Frequency = plandomain.FrequencyDaily
		req.Schedule.DaysOfWeek = nil
	})

	// 06:00 is before the reminder hour: charge only
	h.clock.Set(time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, h.ordersFor(t, plan.ID), 1)
	assert.Empty(t, h.noticesOf(notification.KindUpcomingDelivery))

	h.clock.Set(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, h.ordersFor(t, plan.ID), 1)

	upcoming := h.noticesOf(notification.KindUpcomingDelivery)
	require.Len(t, upcoming, 1)
	assert.True(t, date(2024, 1, 5).Equal(*upcoming[0].payload.DueDate))

	runs := map[string]string{"service": "mealplan", "env": "test", "job": jobProcessMealPlans}
	assert.Equal(t, float64(2), getCounterValue(t, h.registry, "mealplan_scheduler_job_runs_total", runs))
	charged := map[string]string{"service": "mealplan", "env": "test", "outcome": obsmetrics.PlanOutcomeCharged}
	assert.Equal(t, float64(1), getCounterValue(t, h.registry, "mealplan_plan_outcomes_total", charged))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{ReminderHour: 30}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
