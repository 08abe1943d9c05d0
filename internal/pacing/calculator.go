// Package pacing implements the pure schedule-preview function (C1)
// used both by the admission planner and, via its shared cursor math,
// by the live dispatcher's per-send delay computation. Nothing in
// this package performs I/O, reads the wall clock, or blocks.
package pacing

import (
	"math/rand"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

// Sampler produces the two delay quantities the algorithm needs at
// each step. Plan uses an expected-value sampler (avg of min/max);
// the live dispatcher uses UniformSampler, the "strict superset"
// relationship spec.md §4.1's closing paragraph and §9 describe.
type Sampler interface {
	IntervalDelay(minSecs, maxSecs int) time.Duration
	BatchPauseDelay(minSecs, maxSecs int) time.Duration
}

type averageSampler struct{}

func (averageSampler) IntervalDelay(minSecs, maxSecs int) time.Duration {
	return time.Duration((minSecs+maxSecs)/2) * time.Second
}

func (averageSampler) BatchPauseDelay(minSecs, maxSecs int) time.Duration {
	return time.Duration((minSecs+maxSecs)/2) * time.Second
}

// AverageSampler is the expected-value sampler used by Plan.
var AverageSampler Sampler = averageSampler{}

// UniformSampler draws a uniform integer-second delay from [min, max]
// inclusive, matching the live dispatcher's sampling rule.
type UniformSampler struct {
	Rand *rand.Rand
}

// NewUniformSampler builds a sampler around a private rand source so
// concurrent dispatcher goroutines never share (and contend on) the
// global math/rand source.
func NewUniformSampler(seed int64) UniformSampler {
	return UniformSampler{Rand: rand.New(rand.NewSource(seed))}
}

func (s UniformSampler) IntervalDelay(minSecs, maxSecs int) time.Duration {
	return s.uniform(minSecs, maxSecs)
}

func (s UniformSampler) BatchPauseDelay(minSecs, maxSecs int) time.Duration {
	return s.uniform(minSecs, maxSecs)
}

func (s UniformSampler) uniform(minSecs, maxSecs int) time.Duration {
	if maxSecs <= minSecs {
		return time.Duration(minSecs) * time.Second
	}
	span := maxSecs - minSecs + 1
	return time.Duration(minSecs+s.Rand.Intn(span)) * time.Second
}

// Plan computes the expected-value schedule: n planned instants
// starting at start, per spec.md §4.1's algorithm. It is the function
// the admission planner (C2) and the operator-facing preview call.
func Plan(cfg model.PolicyConfig, start time.Time, n int) []time.Time {
	return plan(cfg, start, n, AverageSampler)
}

// plan is the sampler-parameterized core of Plan, which calls it with
// AverageSampler.
func plan(cfg model.PolicyConfig, start time.Time, n int, sampler Sampler) []time.Time {
	out := make([]time.Time, n)
	if n == 0 {
		return out
	}
	cursor := start
	startDay := civilDay(start)

	for i := 0; i < n; i++ {
		if i > 0 {
			cursor = cursor.Add(sampler.IntervalDelay(cfg.MinIntervalSeconds, cfg.MaxIntervalSeconds))
		}
		if cfg.UseBatching && i > 0 && i%cfg.BatchSize == 0 {
			cursor = cursor.Add(sampler.BatchPauseDelay(cfg.BatchPauseMinSecs, cfg.BatchPauseMaxSecs))
		}
		cursor = applyBusinessHours(cfg, cursor)
		cursor = applyAutomaticPause(cfg, cursor, startDay)
		out[i] = cursor
	}
	return out
}

// RequiredDelay computes the live per-send delay the dispatcher's
// send loop (§4.5.iii) adds before the next claim attempt. sentSoFar
// is the campaign's sentMessages counter at the time of the check;
// firstSend forces a zero delay regardless of policy, per
// "if no message has ever been sent, force requiredDelay = 0".
func RequiredDelay(cfg model.PolicyConfig, sentSoFar int, firstSend bool, sampler Sampler) time.Duration {
	if firstSend {
		return 0
	}
	d := sampler.IntervalDelay(cfg.MinIntervalSeconds, cfg.MaxIntervalSeconds)
	if cfg.UseBatching && sentSoFar > 0 && sentSoFar%cfg.BatchSize == 0 {
		d += sampler.BatchPauseDelay(cfg.BatchPauseMinSecs, cfg.BatchPauseMaxSecs)
	}
	return d
}

// InBusinessHoursGate reports whether "now" falls inside the allowed
// sending window for strategy=pause, using the same inclusive/
// exclusive comparison Plan's cursor math uses. The dispatcher's
// pause gate (§4.5.c) calls this directly instead of walking a
// schedule.
func InBusinessHoursGate(cfg model.PolicyConfig, now time.Time) bool {
	if cfg.BusinessHoursStrategy != model.BusinessHoursPause {
		return true
	}
	mod := minuteOfDay(now)
	return mod < cfg.PauseAtMinute && mod >= cfg.ResumeAtMinute
}

// InAutomaticPauseGate reports whether now is inside a configured
// one-shot pause window, mirroring applyAutomaticPause's trigger
// condition for the dispatcher's gate check (§4.5.c).
func InAutomaticPauseGate(cfg model.PolicyConfig, now, campaignStartDay time.Time) bool {
	ap := cfg.AutomaticPause
	if ap == nil || ap.ResumeAt == nil {
		return false
	}
	if !now.Before(*ap.ResumeAt) {
		return false
	}
	dayAfterStart := civilDay(now).After(civilDay(campaignStartDay))
	return minuteOfDay(now) >= ap.PauseAtMinute || dayAfterStart
}

func applyBusinessHours(cfg model.PolicyConfig, cursor time.Time) time.Time {
	if cfg.BusinessHoursStrategy != model.BusinessHoursPause {
		return cursor
	}
	pT, rT := cfg.PauseAtMinute, cfg.ResumeAtMinute
	mod := minuteOfDay(cursor)
	if mod >= pT || mod < rT {
		if mod >= pT {
			cursor = cursor.AddDate(0, 0, 1)
		}
		cursor = setMinuteOfDay(cursor, rT)
	}
	return cursor
}

func applyAutomaticPause(cfg model.PolicyConfig, cursor, startDay time.Time) time.Time {
	ap := cfg.AutomaticPause
	if ap == nil || ap.ResumeAt == nil {
		return cursor
	}
	if cursor.Before(*ap.ResumeAt) {
		dayAfterStart := civilDay(cursor).After(civilDay(startDay))
		if minuteOfDay(cursor) >= ap.PauseAtMinute || dayAfterStart {
			cursor = *ap.ResumeAt
			cursor = applyBusinessHours(cfg, cursor)
		}
	}
	return cursor
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func setMinuteOfDay(t time.Time, minute int) time.Time {
	h, m := minute/60, minute%60
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
