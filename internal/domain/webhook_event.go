package domain

import "time"

// WebhookEvent records one gateway event delivery for deduplication. The
// primary-key constraint on the gateway event id is the sole dedup
// mechanism: inserting the row happens in the same transaction as the state
// mutation the event triggers, so a second concurrent delivery of the same
// id cannot apply twice.
type WebhookEvent struct {
	ID          string `gorm:"primaryKey"` // gateway event id
	EventKey    string `gorm:"index"`
	PayloadHash string
	Processed   bool
	ReceivedAt  time.Time
}
