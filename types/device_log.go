package types

import "time"

// DeviceLog is an append-only audit entry. Entries are never updated or
// deleted by normal operation.
type DeviceLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"index" json:"deviceId"`
	Action    string    `json:"action"`
	Details   JSONMap   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
