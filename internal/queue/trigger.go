package queue

import "context"

// CommandTrigger adapts a Publisher to the command package's narrower
// Trigger interface (a single campaign id, not the full TriggerMessage
// envelope), so command.Service never imports the queue package's
// wire types directly.
type CommandTrigger struct {
	Publisher Publisher
}

func (t *CommandTrigger) TriggerDispatch(ctx context.Context, campaignID int64) error {
	id := campaignID
	return t.Publisher.PublishTrigger(ctx, TriggerMessage{CampaignID: &id})
}
