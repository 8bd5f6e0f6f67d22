package types

import "time"

// Device status values. The heartbeat handler sets online/offline from the
// device's own report; the staleness sweeper is the only other writer.
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
	DeviceStatusWarning = "warning"
)

// Device types accepted at creation and enrollment.
var DeviceTypes = []string{"android", "ios", "windows"}

type Device struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `json:"name"`
	IMEI         string          `gorm:"column:imei;index" json:"imei,omitempty"`
	SerialNumber string          `gorm:"index" json:"serialNumber,omitempty"`
	DeviceType   string          `json:"deviceType"`
	Status       string          `json:"status"`
	BatteryLevel int             `json:"batteryLevel"`
	LastSeen     time.Time       `json:"lastSeen"`
	Location     string          `json:"location,omitempty"`
	OSVersion    string          `json:"osVersion,omitempty"`
	AppVersion   string          `json:"appVersion,omitempty"`
	PushToken    string          `json:"pushToken,omitempty"`
	IsKioskMode  bool            `json:"isKioskMode"`
	KioskConfig  JSONMap         `json:"kioskConfig,omitempty"`
	APIToken     string          `gorm:"index" json:"-"`
	EnrolledAt   time.Time       `json:"enrolledAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Commands     []DeviceCommand `gorm:"foreignKey:DeviceID" json:"-"`
}

// ValidDeviceType reports whether t is one of the supported platforms.
func ValidDeviceType(t string) bool {
	for _, dt := range DeviceTypes {
		if dt == t {
			return true
		}
	}
	return false
}
