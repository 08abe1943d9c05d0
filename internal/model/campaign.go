// Package model holds the persistence-agnostic shapes shared by the
// pacing calculator, the dispatcher, the admission planner, and the
// store adapters.
package model

import "time"

// CampaignStatus is the authoritative set of campaign lifecycle states
// from the state machine (C4). "active" is accepted as an alias of
// "processing" on read and coerced to "processing" by the dispatcher
// on entry.
type CampaignStatus string

const (
	CampaignScheduled  CampaignStatus = "scheduled"
	CampaignPending    CampaignStatus = "pending"
	CampaignProcessing CampaignStatus = "processing"
	CampaignActive     CampaignStatus = "active"
	CampaignPaused     CampaignStatus = "paused"
	CampaignFinished   CampaignStatus = "finished"
	CampaignCanceled   CampaignStatus = "canceled"
	CampaignFailed     CampaignStatus = "failed"
)

// EligibleStatuses are the campaign statuses the dispatcher will pick
// up for a scan (§4.3 "select eligible campaigns").
var EligibleStatuses = []CampaignStatus{CampaignScheduled, CampaignPending, CampaignProcessing, CampaignActive}

// Campaign is the durable row the dispatcher, planner, and command
// service all read and write.
type Campaign struct {
	ID            int64
	OwnerID       int64
	Name          string
	Channel       string
	BaseTemplate  string
	Status        CampaignStatus
	TotalMessages int
	SentMessages  int
	ExecutionTime time.Duration
	ScheduledAt   time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	Config        PolicyConfig
	CreatedAt     time.Time
}

// CampaignFieldUpdate is the unconditional multi-field write the store
// contract (C3) exposes for the dispatcher's campaign bookkeeping.
type CampaignFieldUpdate struct {
	Status        *CampaignStatus
	StartedAt     *time.Time
	FinishedAt    *time.Time
	ExecutionTime *time.Duration
	SentMessages  *int
}

// IsRunning reports whether status belongs to the "running" alias
// class {processing, active} per §9's implicit-state-alias note.
func (s CampaignStatus) IsRunning() bool {
	return s == CampaignProcessing || s == CampaignActive
}

// IsNotYetStarted reports whether status belongs to {scheduled, pending}.
func (s CampaignStatus) IsNotYetStarted() bool {
	return s == CampaignScheduled || s == CampaignPending
}

// IsTerminal reports whether status is a terminal campaign state.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignFinished || s == CampaignCanceled || s == CampaignFailed
}
