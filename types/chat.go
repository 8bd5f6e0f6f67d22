package types

import "time"

// ChatMessage is a console assistant utterance. The response is generated and
// backfilled synchronously before the record is returned to the client.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Message   string    `json:"message"`
	Response  string    `json:"response,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
