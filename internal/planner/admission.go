// Package planner implements the admission-time conflict check (C2):
// given a candidate campaign and the owner's other extant campaigns,
// decide whether the candidate's planned window overlaps an existing
// one and, if so, propose the earliest conflict-free start.
package planner

import (
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/pacing"
)

// Buffer is the fixed window extension both sides of an existing
// campaign's span that a new campaign must clear, per spec.md §4.2.
const Buffer = 60 * time.Minute

// suggestedGap is added on top of Buffer when proposing a conflict-
// free start.
const suggestedGap = 5 * time.Minute

// ExistingCampaign is the minimal shape the planner needs from each
// of the owner's other campaigns.
type ExistingCampaign struct {
	ID           int64
	Name         string
	Start        time.Time
	Config       model.PolicyConfig
	RecipientCnt int
}

// Window is a campaign's planned [start, end] span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Result is the planner's verdict: Conflict is false when there is no
// overlap; otherwise it names the offending campaign and a suggested
// replacement start.
type Result struct {
	Conflict       bool
	ExistingID     int64
	ExistingName   string
	SuggestedStart time.Time
}

// windowOf computes a campaign's [start, end] span via the shared
// pacing calculator (C1), so the planner and the preview always agree
// on what "end" means for a given policy/start/count.
func windowOf(cfg model.PolicyConfig, start time.Time, n int) Window {
	if n == 0 {
		return Window{Start: start, End: start}
	}
	planned := pacing.Plan(cfg, start, n)
	return Window{Start: start, End: planned[len(planned)-1]}
}

// Check evaluates a candidate (cfg, start, n) against the owner's
// other campaigns and returns the first conflict found, or a Result
// with Conflict false.
func Check(cfg model.PolicyConfig, start time.Time, n int, existing []ExistingCampaign) Result {
	candidate := windowOf(cfg, start, n)

	for _, e := range existing {
		existingWindow := windowOf(e.Config, e.Start, e.RecipientCnt)

		if candidate.End.After(existingWindow.Start.Add(-Buffer)) && candidate.Start.Before(existingWindow.End.Add(Buffer)) {
			return Result{
				Conflict:       true,
				ExistingID:     e.ID,
				ExistingName:   e.Name,
				SuggestedStart: existingWindow.End.Add(Buffer).Add(suggestedGap),
			}
		}
	}

	return Result{Conflict: false}
}
