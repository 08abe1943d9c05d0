// Package store defines the Campaign Store Contract (C3): the
// persistence surface the dispatcher, planner, and command service
// see. Two implementations ship — postgres (lib/pq, production) and
// memory (in-process, used by the test suites).
package store

import (
	"context"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

// CampaignStore is the campaign-row half of C3.
type CampaignStore interface {
	// ListEligible returns campaigns whose status is in
	// model.EligibleStatuses and whose ScheduledAt <= now. When
	// onlyCampaignID is non-nil the ScheduledAt filter is skipped, per
	// §4.5.1 ("if a specific id was supplied, skip the scheduledAt
	// filter").
	ListEligible(ctx context.Context, now time.Time, onlyCampaignID *int64) ([]model.Campaign, error)

	// GetStatus is the atomic single-field read the send loop uses to
	// re-check for pause/cancel between sends (§4.5.e.i).
	GetStatus(ctx context.Context, campaignID int64) (model.CampaignStatus, error)

	// UpdateCampaignFields applies an unconditional multi-field write
	// (§4.3's "campaign field update by id").
	UpdateCampaignFields(ctx context.Context, campaignID int64, fields model.CampaignFieldUpdate) error

	// ListOwnerCampaigns returns an owner's campaigns for the
	// admission planner (C2). When excludeTerminal is true, finished,
	// canceled and failed campaigns are omitted.
	ListOwnerCampaigns(ctx context.Context, ownerID int64, excludeTerminal bool) ([]model.Campaign, error)

	// CreateCampaign persists a new campaign row plus one waiting
	// Message row per recipient id (§4.6 Create).
	CreateCampaign(ctx context.Context, c *model.Campaign, recipientIDs []int64) error

	GetCampaign(ctx context.Context, campaignID int64) (*model.Campaign, error)
}

// MessageStore is the message-row half of C3.
type MessageStore interface {
	// ClaimNextWaiting performs the CAS waiting -> sending (§4.3's
	// "atomic message claim"), returning the claimed row joined with
	// its recipient, or apperrors.ErrClaimLost if none was available.
	ClaimNextWaiting(ctx context.Context, campaignID int64, now time.Time) (*model.ClaimedMessage, error)

	// CommitTerminal is the unconditional terminal write (§4.3).
	CommitTerminal(ctx context.Context, messageID int64, status model.MessageStatus, sentAt *time.Time, errMsg string) error

	// CountByStatus is used by the completion check (§4.5.d).
	CountByStatus(ctx context.Context, campaignID int64, statuses ...model.MessageStatus) (int, error)

	// LastSentAt is the most recent non-null sentAt for a campaign
	// (§4.3's "query last-sent instant"), used to compute elapsed
	// time across worker invocations.
	LastSentAt(ctx context.Context, campaignID int64) (*time.Time, error)

	// IncrementSentCounter is the atomic monotone counter bump (§4.3),
	// invoked once per confirmed send.
	IncrementSentCounter(ctx context.Context, campaignID int64) error

	// RetryMessage is the CAS failed -> waiting for the retry-message
	// command (§4.6). Any other source state is a no-op.
	RetryMessage(ctx context.Context, messageID int64) error

	// SweepStuckSending is the janitor pass §7.4 allows: rows stuck in
	// "sending" past olderThan are reset to "waiting" so a future
	// invocation can reclaim them after a write-commit failure.
	SweepStuckSending(ctx context.Context, olderThan time.Duration) (int, error)
}

// Store bundles both halves of C3; most callers just need one Store
// value to construct a dispatcher or command service from.
type Store interface {
	CampaignStore
	MessageStore
}
