package types

import "time"

// Command lifecycle states. Pending is the only initial state; completed and
// failed are terminal. A failed command stays failed, a new command must be
// issued for another attempt.
const (
	CommandStatusPending   = "pending"
	CommandStatusCompleted = "completed"
	CommandStatusFailed    = "failed"
)

// DeviceCommand is a single requested remote action against one device.
// Immutable after creation except for Status, CompletedAt and Response,
// which are written exactly once by the result-report path.
type DeviceCommand struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DeviceID    uint       `gorm:"index" json:"deviceId"`
	Command     string     `json:"command"`
	Status      string     `gorm:"index" json:"status"`
	IssuedBy    string     `json:"issuedBy,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Response    JSONMap    `json:"response,omitempty"`
}
