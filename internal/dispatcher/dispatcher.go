// Package dispatcher implements the Dispatcher (C5): the per-
// invocation scan-and-send loop that advances every eligible
// campaign's messages as far as its pacing policy and the invocation's
// wall-clock budget allow. It generalizes the teacher's
// service.Worker job-channel loop into a budget-bounded, store-driven
// scan, using zerolog for structured progress logging the way the
// pack's services log around their own send loops.
package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/apperrors"
	"github.com/unclebandit/campaign-dispatcher/internal/clock"
	"github.com/unclebandit/campaign-dispatcher/internal/lock"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/pacing"
	"github.com/unclebandit/campaign-dispatcher/internal/sender"
	"github.com/unclebandit/campaign-dispatcher/internal/statemachine"
	"github.com/unclebandit/campaign-dispatcher/internal/store"
)

// Budget is the hard wall-clock ceiling a single invocation may run
// for, per spec.md §4.5.
const Budget = 55 * time.Second

// SendTimeout bounds a single send-endpoint call (§4.5's "Timeouts").
const SendTimeout = 30 * time.Second

// CampaignLocker is the optional per-campaign mutual exclusion §5
// allows ("a campaign-id-scoped mutual exclusion is acceptable but
// not mandated"); the dispatcher runs unlocked if nil.
type CampaignLocker interface {
	Acquire(ctx context.Context, campaignID int64) (Unlocker, error)
}

// Unlocker aliases lock.Unlocker so *lock.CampaignLock satisfies
// CampaignLocker without an adapter type.
type Unlocker = lock.Unlocker

// Sender is the narrow send-endpoint interface the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, req sender.Request) error
}

// CampaignResult is one entry of the scheduler-trigger response (§6).
type CampaignResult struct {
	ID           int64  `json:"id"`
	MessagesSent int    `json:"messagesSent"`
	Status       string `json:"status"`
}

const (
	StatusContinued        = "continued"
	StatusFinished         = "finished"
	StatusPausedTemporarily = "paused_temporarily"
)

type Dispatcher struct {
	Store   store.Store
	Sender  Sender
	Clock   clock.Clock
	Sampler pacing.Sampler
	Locker  CampaignLocker
	Log     zerolog.Logger
}

// New builds a Dispatcher with a live uniform sampler seeded off the
// clock, matching the live/preview split pacing.Plan documents.
func New(st store.Store, snd Sender, clk clock.Clock, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Store:   st,
		Sender:  snd,
		Clock:   clk,
		Sampler: pacing.NewUniformSampler(clk.Now().UnixNano()),
		Log:     logger,
	}
}

// Run executes one invocation: §4.5's per-invocation flow. onlyCampaignID
// narrows the scan to a single campaign and skips the scheduledAt filter.
func (d *Dispatcher) Run(ctx context.Context, onlyCampaignID *int64) ([]CampaignResult, error) {
	invocationStart := d.Clock.Now()
	invocationID := uuid.NewString()
	invocationLog := d.Log.With().Str("invocation_id", invocationID).Logger()

	campaigns, err := d.Store.ListEligible(ctx, invocationStart, onlyCampaignID)
	if err != nil {
		invocationLog.Error().Err(err).Msg("list eligible campaigns failed")
		return nil, err
	}

	results := make([]CampaignResult, 0, len(campaigns))
	for _, c := range campaigns {
		if d.Clock.Now().Sub(invocationStart) > Budget {
			invocationLog.Info().Msg("invocation budget exhausted, stopping scan")
			break
		}
		res := d.runCampaign(ctx, c, invocationStart, invocationID, invocationLog)
		results = append(results, res)
	}
	return results, nil
}

func (d *Dispatcher) runCampaign(ctx context.Context, c model.Campaign, invocationStart time.Time, invocationID string, invocationLog zerolog.Logger) CampaignResult {
	logger := invocationLog.With().Int64("campaign_id", c.ID).Logger()

	if d.Locker != nil {
		held, err := d.Locker.Acquire(ctx, c.ID)
		if err != nil {
			logger.Debug().Err(err).Msg("campaign already locked by another worker")
			return CampaignResult{ID: c.ID, Status: StatusPausedTemporarily}
		}
		defer held.Release(ctx)
	}

	sentThisRun := 0
	now := d.Clock.Now()

	if c.Status.IsNotYetStarted() || c.Status == model.CampaignActive {
		newStatus, err := statemachine.TransitionCampaign(c.Status, model.CampaignProcessing)
		if err != nil {
			logger.Error().Err(err).Msg("illegal transition to processing")
			return CampaignResult{ID: c.ID, Status: StatusPausedTemporarily}
		}
		startedAt := c.StartedAt
		if startedAt == nil {
			startedAt = &now
		}
		if err := d.Store.UpdateCampaignFields(ctx, c.ID, model.CampaignFieldUpdate{
			Status: &newStatus, StartedAt: startedAt,
		}); err != nil {
			logger.Error().Err(err).Msg("failed to transition campaign to processing")
			return CampaignResult{ID: c.ID, Status: StatusPausedTemporarily}
		}
		c.Status = newStatus
		c.StartedAt = startedAt
	}

	if reason, paused := d.checkPauseGates(c, now); paused {
		logger.Debug().Str("reason", reason).Msg("campaign gated, skipping this invocation")
		return CampaignResult{ID: c.ID, Status: StatusPausedTemporarily}
	}

	if finished, err := d.checkCompletion(ctx, &c, now); err != nil {
		logger.Error().Err(err).Msg("completion check failed")
		return CampaignResult{ID: c.ID, Status: StatusPausedTemporarily}
	} else if finished {
		return CampaignResult{ID: c.ID, MessagesSent: sentThisRun, Status: StatusFinished}
	}

	finished, sent, err := d.sendLoop(ctx, &c, invocationStart, invocationID, logger)
	sentThisRun += sent
	if err != nil {
		logger.Error().Err(err).Msg("send loop aborted")
	}

	status := StatusContinued
	if finished {
		status = StatusFinished
	} else {
		now = d.Clock.Now()
		exec := now.Sub(*c.StartedAt)
		if upErr := d.Store.UpdateCampaignFields(ctx, c.ID, model.CampaignFieldUpdate{ExecutionTime: &exec}); upErr != nil {
			logger.Error().Err(upErr).Msg("failed to persist execution time")
		}
	}
	return CampaignResult{ID: c.ID, MessagesSent: sentThisRun, Status: status}
}

// checkPauseGates evaluates §4.5.c in order, stopping at the first
// true gate, without persisting any status change.
func (d *Dispatcher) checkPauseGates(c model.Campaign, now time.Time) (string, bool) {
	startDay := now
	if c.StartedAt != nil {
		startDay = *c.StartedAt
	}
	if pacing.InAutomaticPauseGate(c.Config, now, startDay) {
		return "automatic_pause", true
	}
	if !pacing.InBusinessHoursGate(c.Config, now) {
		return "business_hours", true
	}
	return "", false
}

// checkCompletion implements §4.5.d: reconcile and finalize when no
// work remains in flight or waiting.
func (d *Dispatcher) checkCompletion(ctx context.Context, c *model.Campaign, now time.Time) (bool, error) {
	waiting, err := d.Store.CountByStatus(ctx, c.ID, model.MessageWaiting)
	if err != nil {
		return false, err
	}
	sending, err := d.Store.CountByStatus(ctx, c.ID, model.MessageSending)
	if err != nil {
		return false, err
	}
	if waiting != 0 || sending != 0 {
		return false, nil
	}

	sentCount, err := d.Store.CountByStatus(ctx, c.ID, model.MessageSent)
	if err != nil {
		return false, err
	}

	startedAt := c.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	exec := now.Sub(*startedAt)
	finishedStatus, err := statemachine.TransitionCampaign(c.Status, model.CampaignFinished)
	if err != nil {
		return false, err
	}
	if err := d.Store.UpdateCampaignFields(ctx, c.ID, model.CampaignFieldUpdate{
		Status:        &finishedStatus,
		FinishedAt:    &now,
		ExecutionTime: &exec,
		SentMessages:  &sentCount,
	}); err != nil {
		return false, err
	}
	c.Status = finishedStatus
	return true, nil
}

// sendLoop implements §4.5.e, the inner claim-pace-send-commit loop.
func (d *Dispatcher) sendLoop(ctx context.Context, c *model.Campaign, invocationStart time.Time, invocationID string, logger zerolog.Logger) (finished bool, sent int, err error) {
	for {
		status, err := d.Store.GetStatus(ctx, c.ID)
		if err != nil {
			return false, sent, err
		}
		if status == model.CampaignPaused || status == model.CampaignCanceled {
			return false, sent, nil
		}

		now := d.Clock.Now()
		lastSentAt, err := d.Store.LastSentAt(ctx, c.ID)
		if err != nil {
			return false, sent, err
		}

		firstSend := lastSentAt == nil
		requiredDelay := pacing.RequiredDelay(c.Config, c.SentMessages, firstSend, d.Sampler)

		var elapsed time.Duration
		if lastSentAt != nil {
			elapsed = now.Sub(*lastSentAt)
		}
		waitFor := requiredDelay - elapsed

		if waitFor > 0 {
			if now.Add(waitFor).After(invocationStart.Add(Budget)) {
				return false, sent, nil
			}
			d.Clock.Sleep(waitFor)
		}

		claimed, err := d.Store.ClaimNextWaiting(ctx, c.ID, d.Clock.Now())
		if err != nil {
			if err == apperrors.ErrClaimLost {
				done, cerr := d.checkCompletion(ctx, c, d.Clock.Now())
				if cerr != nil {
					return false, sent, cerr
				}
				if done {
					return true, sent, nil
				}
				continue
			}
			return false, sent, err
		}

		if d.sendAndCommit(ctx, claimed, invocationID, logger) {
			sent++
			if err := d.Store.IncrementSentCounter(ctx, c.ID); err != nil {
				logger.Error().Err(err).Msg("failed to bump sent counter")
			}
			c.SentMessages++
		}

		if d.Clock.Now().Sub(invocationStart) > Budget {
			return false, sent, nil
		}
	}
}

// sendAndCommit performs §4.5.e.vi-vii: the external call and its
// terminal commit, isolated so a send failure never aborts the loop.
// It reports whether the send was confirmed, so the caller only bumps
// the monotone sent counter (§3, L3) on an actual success.
func (d *Dispatcher) sendAndCommit(ctx context.Context, claimed *model.ClaimedMessage, invocationID string, logger zerolog.Logger) bool {
	sendCtx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()
	sendCtx = sender.WithInvocationID(sendCtx, invocationID)

	req := sender.Request{
		Name:    claimed.Recipient.Name,
		Phone:   claimed.Recipient.Phone,
		Message: claimed.RenderedContent,
	}

	err := d.Sender.Send(sendCtx, req)
	now := d.Clock.Now()

	if err == nil {
		if cerr := d.Store.CommitTerminal(ctx, claimed.ID, model.MessageSent, &now, ""); cerr != nil {
			logger.Error().Err(cerr).Int64("message_id", claimed.ID).Msg("terminal commit failed after successful send")
		}
		return true
	}

	errMsg := err.Error()
	if sendCtx.Err() == context.DeadlineExceeded {
		errMsg = "timeout"
	}
	if cerr := d.Store.CommitTerminal(ctx, claimed.ID, model.MessageFailed, claimed.SentAt, errMsg); cerr != nil {
		logger.Error().Err(cerr).Int64("message_id", claimed.ID).Msg("terminal commit failed after send failure")
	}
	return false
}
