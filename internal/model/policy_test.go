package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

func TestFromRawConfig_Defaults(t *testing.T) {
	cfg, err := model.FromRawConfig(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MinIntervalSeconds)
	assert.Equal(t, 40, cfg.MaxIntervalSeconds)
	assert.Equal(t, model.BusinessHoursIgnore, cfg.BusinessHoursStrategy)
	assert.Nil(t, cfg.AutomaticPause)
}

func TestFromRawConfig_BusinessHoursParsesHHMM(t *testing.T) {
	cfg, err := model.FromRawConfig(map[string]any{
		"businessHoursStrategy": "pause",
		"pauseAt":               "18:00",
		"resumeAt":              "08:00",
		"minIntervalSeconds":    5.0,
		"maxIntervalSeconds":    5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BusinessHoursPause, cfg.BusinessHoursStrategy)
	assert.Equal(t, 18*60, cfg.PauseAtMinute)
	assert.Equal(t, 8*60, cfg.ResumeAtMinute)
}

func TestFromRawConfig_BusinessHoursRejectsMalformedTime(t *testing.T) {
	_, err := model.FromRawConfig(map[string]any{
		"businessHoursStrategy": "pause",
		"pauseAt":               "not-a-time",
		"resumeAt":              "08:00",
	})
	require.Error(t, err)
}

func TestFromRawConfig_AutomaticPause(t *testing.T) {
	cfg, err := model.FromRawConfig(map[string]any{
		"automaticPause": map[string]any{
			"pauseAt":  "18:00",
			"resumeAt": "2026-01-06T08:00:00Z",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.AutomaticPause)
	assert.Equal(t, 18*60, cfg.AutomaticPause.PauseAtMinute)
	require.NotNil(t, cfg.AutomaticPause.ResumeAt)
	assert.True(t, cfg.AutomaticPause.ResumeAt.Equal(time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC)))
}

func TestFromRawConfig_AutomaticPauseRejectsMissingResumeAt(t *testing.T) {
	_, err := model.FromRawConfig(map[string]any{
		"automaticPause": map[string]any{
			"pauseAt": "18:00",
		},
	})
	require.Error(t, err)
}

func TestFromRawConfig_AutomaticPauseRejectsNonRFC3339ResumeAt(t *testing.T) {
	_, err := model.FromRawConfig(map[string]any{
		"automaticPause": map[string]any{
			"pauseAt":  "18:00",
			"resumeAt": "08:00",
		},
	})
	require.Error(t, err)
}

func TestFromRawConfig_RejectsResumeAfterPauseSameDay(t *testing.T) {
	_, err := model.FromRawConfig(map[string]any{
		"businessHoursStrategy": "pause",
		"pauseAt":               "08:00",
		"resumeAt":              "18:00",
	})
	require.Error(t, err)
}
