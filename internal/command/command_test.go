package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/command"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/store/memory"
)

type recordingTrigger struct {
	ids []int64
}

func (r *recordingTrigger) TriggerDispatch(ctx context.Context, campaignID int64) error {
	r.ids = append(r.ids, campaignID)
	return nil
}

func validConfig() model.PolicyConfig {
	return model.PolicyConfig{MinIntervalSeconds: 30, MaxIntervalSeconds: 40, BusinessHoursStrategy: model.BusinessHoursIgnore}
}

func TestCreate_Success(t *testing.T) {
	st := memory.New()
	trig := &recordingTrigger{}
	svc := command.New(st, trig)

	req := command.CreateRequest{
		OwnerID: 1, Name: "welcome", Channel: "sms", ScheduledAt: time.Now(), Config: validConfig(),
		Recipients: []model.Recipient{{ID: 1}, {ID: 2}},
	}
	c, result, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, result.Conflict)
	assert.Equal(t, model.CampaignScheduled, c.Status)
	assert.Equal(t, 2, c.TotalMessages)
	assert.Equal(t, []int64{c.ID}, trig.ids)
}

func TestCreate_RejectsInvalidPolicy(t *testing.T) {
	st := memory.New()
	svc := command.New(st, &recordingTrigger{})

	req := command.CreateRequest{
		OwnerID: 1, Name: "x", ScheduledAt: time.Now(),
		Config: model.PolicyConfig{MinIntervalSeconds: 1, MaxIntervalSeconds: 5},
	}
	_, _, err := svc.Create(context.Background(), req)
	require.Error(t, err)
}

func TestCreate_AdmissionConflict(t *testing.T) {
	st := memory.New()
	svc := command.New(st, &recordingTrigger{})

	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	cfg := model.PolicyConfig{MinIntervalSeconds: 60, MaxIntervalSeconds: 60}
	recipients := make([]model.Recipient, 61)
	for i := range recipients {
		recipients[i] = model.Recipient{ID: int64(i + 1)}
	}
	_, result, err := svc.Create(context.Background(), command.CreateRequest{
		OwnerID: 1, Name: "first", ScheduledAt: base, Config: cfg, Recipients: recipients,
	})
	require.NoError(t, err)
	require.False(t, result.Conflict)

	candidateRecipients := make([]model.Recipient, 21)
	for i := range candidateRecipients {
		candidateRecipients[i] = model.Recipient{ID: int64(100 + i)}
	}
	_, result2, err := svc.Create(context.Background(), command.CreateRequest{
		OwnerID: 1, Name: "second", ScheduledAt: base.Add(30 * time.Minute), Config: cfg, Recipients: candidateRecipients,
	})
	require.NoError(t, err)
	require.True(t, result2.Conflict)
	assert.Equal(t, time.Date(2026, 1, 5, 12, 5, 0, 0, time.UTC), result2.SuggestedStart)
}

func TestPauseResumeCancel_Idempotent(t *testing.T) {
	st := memory.New()
	svc := command.New(st, &recordingTrigger{})

	c, _, err := svc.Create(context.Background(), command.CreateRequest{
		OwnerID: 1, Name: "x", ScheduledAt: time.Now(), Config: validConfig(),
		Recipients: []model.Recipient{{ID: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Pause(context.Background(), c.ID))
	require.NoError(t, svc.Pause(context.Background(), c.ID))
	status, err := st.GetStatus(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignPaused, status)

	require.NoError(t, svc.Resume(context.Background(), c.ID))
	require.NoError(t, svc.Resume(context.Background(), c.ID))
	status, err = st.GetStatus(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignActive, status)

	require.NoError(t, svc.Cancel(context.Background(), c.ID))
	require.NoError(t, svc.Cancel(context.Background(), c.ID))
	status, err = st.GetStatus(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCanceled, status)
}

func TestRetryMessage_NoOpOnNonFailed(t *testing.T) {
	st := memory.New()
	svc := command.New(st, &recordingTrigger{})

	c, _, err := svc.Create(context.Background(), command.CreateRequest{
		OwnerID: 1, Name: "x", ScheduledAt: time.Now(), Config: validConfig(),
		Recipients: []model.Recipient{{ID: 1}},
	})
	require.NoError(t, err)

	claimed, err := st.ClaimNextWaiting(context.Background(), c.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, st.CommitTerminal(context.Background(), claimed.ID, model.MessageSent, nil, ""))
	require.NoError(t, svc.RetryMessage(context.Background(), claimed.ID))

	count, err := st.CountByStatus(context.Background(), c.ID, model.MessageWaiting)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
