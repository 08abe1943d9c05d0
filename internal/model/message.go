package model

import "time"

// MessageStatus is the per-recipient unit-of-work state from C4.
type MessageStatus string

const (
	MessageWaiting MessageStatus = "waiting"
	MessageSending MessageStatus = "sending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// MaxErrorMessageLen bounds the truncation of a send failure's
// errorMessage, per §4.5.vii ("max reasonable length, truncated").
const MaxErrorMessageLen = 500

// Message is the smallest claim/commit unit the dispatcher advances.
type Message struct {
	ID              int64
	CampaignID      int64
	RecipientID     int64
	Status          MessageStatus
	RenderedContent string
	ErrorMessage    string
	SentAt          *time.Time
}

// ClaimedMessage is what the atomic claim primitive hands back: the
// claimed message row joined with the recipient it targets, so the
// dispatcher never issues a second query to resolve who to send to.
type ClaimedMessage struct {
	Message
	Recipient Recipient
}

// TruncateError applies the §4.5.vii truncation rule.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}
