package pacing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/pacing"
)

func TestPlan_ImmediateSmallCampaign(t *testing.T) {
	// Scenario 1: min=max=5s, n=3, businessHoursStrategy=ignore.
	cfg := model.PolicyConfig{MinIntervalSeconds: 5, MaxIntervalSeconds: 5, BusinessHoursStrategy: model.BusinessHoursIgnore}
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	got := pacing.Plan(cfg, t0, 3)
	require.Len(t, got, 3)
	assert.Equal(t, t0, got[0])
	assert.Equal(t, t0.Add(5*time.Second), got[1])
	assert.Equal(t, t0.Add(10*time.Second), got[2])
}

func TestPlan_BatchPause(t *testing.T) {
	// Scenario 2: min=max=1s, batching on, batchSize=2, batchPause=10s, n=4.
	cfg := model.PolicyConfig{
		MinIntervalSeconds: 1, MaxIntervalSeconds: 1,
		UseBatching: true, BatchSize: 2, BatchPauseMinSecs: 10, BatchPauseMaxSecs: 10,
		BusinessHoursStrategy: model.BusinessHoursIgnore,
	}
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	got := pacing.Plan(cfg, t0, 4)
	want := []time.Time{t0, t0.Add(1 * time.Second), t0.Add(12 * time.Second), t0.Add(13 * time.Second)}
	require.Len(t, got, 4)
	for i := range want {
		assert.Equal(t, want[i], got[i], "index %d", i)
	}
}

func TestPlan_BusinessHoursSkip(t *testing.T) {
	// Scenario 3: pauseAt=18:00, resumeAt=08:00, min=max=1s, n=2, start=17:59:59.
	cfg := model.PolicyConfig{
		MinIntervalSeconds: 1, MaxIntervalSeconds: 1,
		BusinessHoursStrategy: model.BusinessHoursPause,
		PauseAtMinute:         18 * 60,
		ResumeAtMinute:        8 * 60,
	}
	t0 := time.Date(2026, 1, 5, 17, 59, 59, 0, time.UTC)

	got := pacing.Plan(cfg, t0, 2)
	require.Len(t, got, 2)
	assert.Equal(t, t0, got[0])
	assert.Equal(t, time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC), got[1])
}

func TestPlan_BoundaryZeroRecipients(t *testing.T) {
	cfg := model.PolicyConfig{MinIntervalSeconds: 5, MaxIntervalSeconds: 5}
	got := pacing.Plan(cfg, time.Now(), 0)
	assert.Empty(t, got)
}

func TestPlan_BoundaryBatchSizeEqualsN(t *testing.T) {
	// n == batchSize: no batch pause inserted after the last message
	// (modulus check uses i > 0).
	cfg := model.PolicyConfig{
		MinIntervalSeconds: 1, MaxIntervalSeconds: 1,
		UseBatching: true, BatchSize: 3, BatchPauseMinSecs: 10, BatchPauseMaxSecs: 10,
	}
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	got := pacing.Plan(cfg, t0, 3)
	// i=0: t0; i=1: +1s (no batch, 1%3!=0); i=2: +1s (2%3!=0)
	assert.Equal(t, t0, got[0])
	assert.Equal(t, t0.Add(1*time.Second), got[1])
	assert.Equal(t, t0.Add(2*time.Second), got[2])
}

func TestRequiredDelay_FirstSendIsImmediate(t *testing.T) {
	cfg := model.PolicyConfig{MinIntervalSeconds: 30, MaxIntervalSeconds: 40}
	d := pacing.RequiredDelay(cfg, 0, true, pacing.NewUniformSampler(1))
	assert.Zero(t, d)
}

func TestRequiredDelay_UniformWithinExpectedEnvelope(t *testing.T) {
	cfg := model.PolicyConfig{MinIntervalSeconds: 10, MaxIntervalSeconds: 20}
	sampler := pacing.NewUniformSampler(42)
	for i := 0; i < 200; i++ {
		d := pacing.RequiredDelay(cfg, 1, false, sampler)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 20*time.Second)
	}
}

func TestInBusinessHoursGate(t *testing.T) {
	cfg := model.PolicyConfig{BusinessHoursStrategy: model.BusinessHoursPause, PauseAtMinute: 18 * 60, ResumeAtMinute: 8 * 60}
	inside := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC)
	assert.True(t, pacing.InBusinessHoursGate(cfg, inside))
	assert.False(t, pacing.InBusinessHoursGate(cfg, outside))
}
