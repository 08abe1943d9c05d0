package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BusinessHoursStrategy selects how the dispatcher treats the
// configured business-hours window.
type BusinessHoursStrategy string

const (
	BusinessHoursIgnore BusinessHoursStrategy = "ignore"
	BusinessHoursPause  BusinessHoursStrategy = "pause"
)

// AutomaticPause is the optional one-shot interruption from §3.
type AutomaticPause struct {
	PauseAtMinute int        `json:"pauseAtMinute"`
	ResumeAt      *time.Time `json:"resumeAt,omitempty"`
}

// PolicyConfig is the canonical, strongly-typed pacing policy. The
// duck-typed document the ingestion path may hand over (mixed
// snake_case/camelCase, optional fields) is normalized into this
// shape by FromRawConfig before it ever reaches the pacing calculator
// or the dispatcher.
type PolicyConfig struct {
	MinIntervalSeconds int `json:"minIntervalSeconds"`
	MaxIntervalSeconds int `json:"maxIntervalSeconds"`

	UseBatching       bool `json:"useBatching"`
	BatchSize         int  `json:"batchSize,omitempty"`
	BatchPauseMinSecs int  `json:"batchPauseMinSeconds,omitempty"`
	BatchPauseMaxSecs int  `json:"batchPauseMaxSeconds,omitempty"`

	BusinessHoursStrategy BusinessHoursStrategy `json:"businessHoursStrategy"`
	// PauseAtMinute / ResumeAtMinute are minute-of-day (0..1439),
	// interpreted in the campaign timezone (§6). Only meaningful when
	// BusinessHoursStrategy == BusinessHoursPause.
	PauseAtMinute  int `json:"pauseAtMinute,omitempty"`
	ResumeAtMinute int `json:"resumeAtMinute,omitempty"`

	AutomaticPause *AutomaticPause `json:"automaticPause,omitempty"`
}

// Validate enforces the invariants of spec.md §3's PolicyConfig
// enumeration. command.Service.Create and FromRawConfig call it, so a
// policy that fails it is rejected at admission (§7, "Policy-invalid
// at admission"); the store adapters themselves do not validate.
func (p PolicyConfig) Validate() error {
	if p.MinIntervalSeconds < 5 {
		return fmt.Errorf("minInterval must be >= 5, got %d", p.MinIntervalSeconds)
	}
	if p.MaxIntervalSeconds < p.MinIntervalSeconds {
		return fmt.Errorf("maxInterval (%d) must be >= minInterval (%d)", p.MaxIntervalSeconds, p.MinIntervalSeconds)
	}
	if p.UseBatching {
		if p.BatchSize < 1 {
			return fmt.Errorf("batchSize must be >= 1 when useBatching is set")
		}
		if p.BatchPauseMinSecs < 1 || p.BatchPauseMaxSecs < p.BatchPauseMinSecs {
			return fmt.Errorf("batchPauseMin/Max must satisfy 1 <= min <= max")
		}
	}
	if p.BusinessHoursStrategy == BusinessHoursPause {
		if p.ResumeAtMinute >= p.PauseAtMinute {
			return fmt.Errorf("resumeAt must be strictly before pauseAt on the same day (midnight-spanning windows are not supported)")
		}
	} else if p.BusinessHoursStrategy != "" && p.BusinessHoursStrategy != BusinessHoursIgnore {
		return fmt.Errorf("unknown businessHoursStrategy %q", p.BusinessHoursStrategy)
	}
	return nil
}

// defaultConfig matches §9's fallback values for missing required
// fields: min=30, max=40, strategy=ignore.
func defaultConfig() PolicyConfig {
	return PolicyConfig{
		MinIntervalSeconds:    30,
		MaxIntervalSeconds:    40,
		BusinessHoursStrategy: BusinessHoursIgnore,
	}
}

// FromRawConfig normalizes a loosely-typed document — as the
// ingestion path may hand over, mixing snake_case and camelCase keys
// — into a canonical PolicyConfig. Unknown fields are ignored; a
// missing min/max/strategy falls back to defaultConfig's values, per
// §9.
func FromRawConfig(raw map[string]any) (PolicyConfig, error) {
	cfg := defaultConfig()

	getInt := func(keys ...string) (int, bool) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				switch n := v.(type) {
				case float64:
					return int(n), true
				case int:
					return n, true
				case json.Number:
					i, err := n.Int64()
					if err == nil {
						return int(i), true
					}
				}
			}
		}
		return 0, false
	}
	getBool := func(keys ...string) (bool, bool) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				if b, ok := v.(bool); ok {
					return b, true
				}
			}
		}
		return false, false
	}
	getStr := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				if s, ok := v.(string); ok {
					return s, true
				}
			}
		}
		return "", false
	}

	if v, ok := getInt("min_interval", "minInterval", "minIntervalSeconds"); ok {
		cfg.MinIntervalSeconds = v
	}
	if v, ok := getInt("max_interval", "maxInterval", "maxIntervalSeconds"); ok {
		cfg.MaxIntervalSeconds = v
	}
	if v, ok := getBool("use_batching", "useBatching"); ok {
		cfg.UseBatching = v
	}
	if v, ok := getInt("batch_size", "batchSize"); ok {
		cfg.BatchSize = v
	}
	if v, ok := getInt("batch_pause_min", "batchPauseMin", "batchPauseMinSeconds"); ok {
		cfg.BatchPauseMinSecs = v
	}
	if v, ok := getInt("batch_pause_max", "batchPauseMax", "batchPauseMaxSeconds"); ok {
		cfg.BatchPauseMaxSecs = v
	}
	if v, ok := getStr("business_hours_strategy", "businessHoursStrategy"); ok {
		cfg.BusinessHoursStrategy = BusinessHoursStrategy(v)
	}
	if v, ok := getStr("pause_at", "pauseAt"); ok {
		m, err := parseHHMM(v)
		if err != nil {
			return PolicyConfig{}, fmt.Errorf("pauseAt: %w", err)
		}
		cfg.PauseAtMinute = m
	}
	if v, ok := getStr("resume_at", "resumeAt"); ok {
		m, err := parseHHMM(v)
		if err != nil {
			return PolicyConfig{}, fmt.Errorf("resumeAt: %w", err)
		}
		cfg.ResumeAtMinute = m
	}

	rawAP, ok := raw["automaticPause"]
	if !ok {
		rawAP, ok = raw["automatic_pause"]
	}
	if ok {
		ap, err := automaticPauseFromRaw(rawAP)
		if err != nil {
			return PolicyConfig{}, fmt.Errorf("automaticPause: %w", err)
		}
		cfg.AutomaticPause = ap
	}

	if err := cfg.Validate(); err != nil {
		return PolicyConfig{}, err
	}
	return cfg, nil
}

// parseHHMM parses a §3 "HH:MM" wall-clock string into minute-of-day
// (0..1439).
func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// automaticPauseFromRaw decodes the §3 automaticPause object: pauseAt
// is an "HH:MM" wall-clock string, resumeAt is an absolute RFC3339
// instant (unlike the businessHoursStrategy pair, this is a one-shot
// pause, not a daily window).
func automaticPauseFromRaw(raw any) (*AutomaticPause, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object")
	}

	pauseAtStr, ok := obj["pauseAt"].(string)
	if !ok {
		pauseAtStr, ok = obj["pause_at"].(string)
	}
	if !ok {
		return nil, fmt.Errorf("missing pauseAt")
	}
	pauseAtMinute, err := parseHHMM(pauseAtStr)
	if err != nil {
		return nil, fmt.Errorf("pauseAt: %w", err)
	}

	resumeAtStr, ok := obj["resumeAt"].(string)
	if !ok {
		resumeAtStr, ok = obj["resume_at"].(string)
	}
	if !ok {
		return nil, fmt.Errorf("missing resumeAt")
	}
	resumeAt, err := time.Parse(time.RFC3339, resumeAtStr)
	if err != nil {
		return nil, fmt.Errorf("resumeAt: expected RFC3339 instant, got %q", resumeAtStr)
	}

	return &AutomaticPause{PauseAtMinute: pauseAtMinute, ResumeAt: &resumeAt}, nil
}
