// Package command implements the Command Interface (C6): the
// operator-facing verbs (Create, Pause, Resume, Cancel, RetryMessage)
// that write through the state machine (C4) and the admission planner
// (C2), generalizing the teacher's CampaignService into the spec's
// store-contract shape.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/apperrors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/planner"
	"github.com/unclebandit/campaign-dispatcher/internal/statemachine"
	"github.com/unclebandit/campaign-dispatcher/internal/store"
)

// Trigger schedules an out-of-band dispatcher run, decoupling Create
// from a direct dispatcher dependency; the production wiring is
// internal/queue's amqp publisher, tests use a no-op or recording stub.
type Trigger interface {
	TriggerDispatch(ctx context.Context, campaignID int64) error
}

type Service struct {
	Store   store.Store
	Trigger Trigger
}

func New(st store.Store, trigger Trigger) *Service {
	return &Service{Store: st, Trigger: trigger}
}

// CreateRequest is the operator-supplied shape for a new campaign.
type CreateRequest struct {
	OwnerID      int64
	Name         string
	Channel      string
	BaseTemplate string
	ScheduledAt  time.Time
	Config       model.PolicyConfig
	Recipients   []model.Recipient
}

// Create persists the campaign and one waiting message per recipient,
// running the admission conflict check first (§4.6's Create verb,
// backed by C2's Check), then schedules an immediate dispatcher run.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Campaign, *planner.Result, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrPolicyInvalid, err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, nil, fmt.Errorf("%w: name is required", apperrors.ErrPolicyInvalid)
	}

	existingCampaigns, err := s.Store.ListOwnerCampaigns(ctx, req.OwnerID, true)
	if err != nil {
		return nil, nil, err
	}
	existing := make([]planner.ExistingCampaign, 0, len(existingCampaigns))
	for _, c := range existingCampaigns {
		start := c.ScheduledAt
		if c.StartedAt != nil {
			start = *c.StartedAt
		}
		existing = append(existing, planner.ExistingCampaign{
			ID: c.ID, Name: c.Name, Start: start, Config: c.Config, RecipientCnt: c.TotalMessages,
		})
	}

	result := planner.Check(req.Config, req.ScheduledAt, len(req.Recipients), existing)
	if result.Conflict {
		return nil, &result, nil
	}

	c := &model.Campaign{
		OwnerID:      req.OwnerID,
		Name:         req.Name,
		Channel:      req.Channel,
		BaseTemplate: req.BaseTemplate,
		Status:       model.CampaignScheduled,
		ScheduledAt:  req.ScheduledAt,
		Config:       req.Config,
	}

	recipientIDs := make([]int64, len(req.Recipients))
	for i, r := range req.Recipients {
		recipientIDs[i] = r.ID
	}

	if err := s.Store.CreateCampaign(ctx, c, recipientIDs); err != nil {
		return nil, nil, err
	}

	if s.Trigger != nil {
		if err := s.Trigger.TriggerDispatch(ctx, c.ID); err != nil {
			return c, &result, err
		}
	}
	return c, &result, nil
}

// Pause sets status=paused; idempotent (§4.6, L2).
func (s *Service) Pause(ctx context.Context, campaignID int64) error {
	return s.transition(ctx, campaignID, model.CampaignPaused)
}

// Resume sets status=active; idempotent (§4.6, L2).
func (s *Service) Resume(ctx context.Context, campaignID int64) error {
	return s.transition(ctx, campaignID, model.CampaignActive)
}

// Cancel sets status=canceled; terminal.
func (s *Service) Cancel(ctx context.Context, campaignID int64) error {
	return s.transition(ctx, campaignID, model.CampaignCanceled)
}

func (s *Service) transition(ctx context.Context, campaignID int64, to model.CampaignStatus) error {
	current, err := s.Store.GetStatus(ctx, campaignID)
	if err != nil {
		return err
	}
	newStatus, err := statemachine.TransitionCampaign(current, to)
	if err != nil {
		return err
	}
	return s.Store.UpdateCampaignFields(ctx, campaignID, model.CampaignFieldUpdate{Status: &newStatus})
}

// RetryMessage CASes a failed message back to waiting, clearing
// errorMessage and sentAt; any other source state is a no-op (§4.6, L2).
func (s *Service) RetryMessage(ctx context.Context, messageID int64) error {
	return s.Store.RetryMessage(ctx, messageID)
}
