// Package domain contains core concepts of the chat room.
// Messages are immutable once stored: the only changes to the collection
// are inserts by the submission service and deletes by the retention sweeper.
package domain

import (
	"time"
)

const (
	// MaxContentLength is counted in runes after sanitization.
	MaxContentLength = 500
	// SpamRunLength is the number of identical consecutive runes flagged as spam.
	SpamRunLength = 50
	// RetentionHorizon is the age past which a message becomes eligible for deletion.
	RetentionHorizon = 24 * time.Hour
	// MaxRecentMessages bounds the read path used by polling clients.
	MaxRecentMessages = 100
)

// Message represents one posted chat line.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"user_fingerprint"`
}

// Expired reports whether the message is past the retention horizon at now.
func (m Message) Expired(now time.Time) bool {
	return m.CreatedAt.Before(now.Add(-RetentionHorizon))
}
