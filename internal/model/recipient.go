package model

// Recipient is read-only to the scheduler (§3): populated by the
// out-of-scope ingestion path, consumed here only to render and
// address a message.
type Recipient struct {
	ID          int64
	CampaignID  int64
	Name        string
	Phone       string
	MessageBody string
}
