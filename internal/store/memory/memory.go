// Package memory is an in-process implementation of store.Store,
// used by the dispatcher, command and HTTP API test suites. It follows the same mutex-guarded-map shape as the
// teacher repo's mock repositories, generalized into a real (if
// non-durable) store rather than a test stub.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/apperrors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type Store struct {
	mu         sync.Mutex
	campaigns  map[int64]*model.Campaign
	recipients map[int64]model.Recipient
	messages   map[int64]*model.Message
	nextCampID int64
	nextMsgID  int64
}

func New() *Store {
	return &Store{
		campaigns:  make(map[int64]*model.Campaign),
		recipients: make(map[int64]model.Recipient),
		messages:   make(map[int64]*model.Message),
	}
}

// PutRecipient seeds a recipient row; recipient ingestion is out of
// scope (spec.md §1) so tests/tools populate this directly.
func (s *Store) PutRecipient(r model.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[r.ID] = r
}

func (s *Store) ListEligible(ctx context.Context, now time.Time, onlyCampaignID *int64) ([]model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Campaign
	for _, c := range s.campaigns {
		if onlyCampaignID != nil && c.ID != *onlyCampaignID {
			continue
		}
		if !isEligibleStatus(c.Status) {
			continue
		}
		if onlyCampaignID == nil && c.ScheduledAt.After(now) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func isEligibleStatus(s model.CampaignStatus) bool {
	for _, e := range model.EligibleStatuses {
		if s == e {
			return true
		}
	}
	return false
}

func (s *Store) GetStatus(ctx context.Context, campaignID int64) (model.CampaignStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return "", apperrors.NewCampaignNotFound(campaignID)
	}
	return c.Status, nil
}

func (s *Store) UpdateCampaignFields(ctx context.Context, campaignID int64, f model.CampaignFieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return apperrors.NewCampaignNotFound(campaignID)
	}
	if f.Status != nil {
		c.Status = *f.Status
	}
	if f.StartedAt != nil {
		c.StartedAt = f.StartedAt
	}
	if f.FinishedAt != nil {
		c.FinishedAt = f.FinishedAt
	}
	if f.ExecutionTime != nil {
		c.ExecutionTime = *f.ExecutionTime
	}
	if f.SentMessages != nil {
		c.SentMessages = *f.SentMessages
	}
	return nil
}

func (s *Store) ListOwnerCampaigns(ctx context.Context, ownerID int64, excludeTerminal bool) ([]model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Campaign
	for _, c := range s.campaigns {
		if c.OwnerID != ownerID {
			continue
		}
		if excludeTerminal && c.Status.IsTerminal() {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *model.Campaign, recipientIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCampID++
	c.ID = s.nextCampID
	c.TotalMessages = len(recipientIDs)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	s.campaigns[c.ID] = &cp

	for _, rid := range recipientIDs {
		s.nextMsgID++
		s.messages[s.nextMsgID] = &model.Message{
			ID:          s.nextMsgID,
			CampaignID:  c.ID,
			RecipientID: rid,
			Status:      model.MessageWaiting,
		}
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID int64) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ClaimNextWaiting(ctx context.Context, campaignID int64, now time.Time) (*model.ClaimedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, m := range s.messages {
		if m.CampaignID == campaignID && m.Status == model.MessageWaiting {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, apperrors.ErrClaimLost
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	id := ids[0]
	m := s.messages[id]
	m.Status = model.MessageSending
	m.SentAt = &now

	recipient := s.recipients[m.RecipientID]
	if m.RenderedContent == "" {
		m.RenderedContent = recipient.MessageBody
	}

	out := model.ClaimedMessage{Message: *m, Recipient: recipient}
	return &out, nil
}

func (s *Store) CommitTerminal(ctx context.Context, messageID int64, status model.MessageStatus, sentAt *time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return apperrors.NewMessageNotFound(messageID)
	}
	m.Status = status
	if sentAt != nil {
		m.SentAt = sentAt
	}
	m.ErrorMessage = model.TruncateError(errMsg)
	return nil
}

func (s *Store) CountByStatus(ctx context.Context, campaignID int64, statuses ...model.MessageStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[model.MessageStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	n := 0
	for _, m := range s.messages {
		if m.CampaignID == campaignID && want[m.Status] {
			n++
		}
	}
	return n, nil
}

func (s *Store) LastSentAt(ctx context.Context, campaignID int64) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, m := range s.messages {
		if m.CampaignID != campaignID || m.SentAt == nil {
			continue
		}
		if last == nil || m.SentAt.After(*last) {
			t := *m.SentAt
			last = &t
		}
	}
	return last, nil
}

func (s *Store) IncrementSentCounter(ctx context.Context, campaignID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return apperrors.NewCampaignNotFound(campaignID)
	}
	c.SentMessages++
	return nil
}

func (s *Store) RetryMessage(ctx context.Context, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return apperrors.NewMessageNotFound(messageID)
	}
	if m.Status != model.MessageFailed {
		return nil // no-op per §4.6
	}
	m.Status = model.MessageWaiting
	m.ErrorMessage = ""
	m.SentAt = nil
	return nil
}

func (s *Store) SweepStuckSending(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	n := 0
	for _, m := range s.messages {
		if m.Status == model.MessageSending && m.SentAt != nil && m.SentAt.Before(cutoff) {
			m.Status = model.MessageWaiting
			m.SentAt = nil
			n++
		}
	}
	return n, nil
}
