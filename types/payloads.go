package types

// CommandPayload is the console request body for creating a command. Any
// caller-supplied status is ignored: commands always start out pending.
type CommandPayload struct {
	Command  string `json:"command"`
	IssuedBy string `json:"issuedBy"`
	Status   string `json:"status,omitempty"`
}

// ControlPayload toggles a single device feature.
type ControlPayload struct {
	Action  string `json:"action"`
	Enabled bool   `json:"enabled"`
}

// BulkControlPayload fans a set of feature toggles out to many devices.
type BulkControlPayload struct {
	DeviceIDs []uint          `json:"deviceIds"`
	Controls  map[string]bool `json:"controls"`
}

// BulkControlResult is the per-device acknowledgement for a bulk request.
type BulkControlResult struct {
	DeviceID uint   `json:"deviceId"`
	Status   string `json:"status"`
}

// EmergencyPayload is the privileged lock/wipe request.
type EmergencyPayload struct {
	Action        string `json:"action"`
	AdminPassword string `json:"adminPassword"`
	Reason        string `json:"reason"`
}

// KioskPayload toggles kiosk mode and carries the kiosk configuration.
type KioskPayload struct {
	Enabled bool    `json:"enabled"`
	Config  JSONMap `json:"config,omitempty"`
}

// DevicePayload is the console request body for creating or updating a device.
type DevicePayload struct {
	Name         string  `json:"name"`
	IMEI         string  `json:"imei,omitempty"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	DeviceType   string  `json:"deviceType"`
	PushToken    string  `json:"pushToken,omitempty"`
	IsKioskMode  *bool   `json:"isKioskMode,omitempty"`
	KioskConfig  JSONMap `json:"kioskConfig,omitempty"`
	Location     string  `json:"location,omitempty"`
}

// DeviceFilter narrows the console device listing. Decoded from the query
// string.
type DeviceFilter struct {
	Status     string `form:"status"`
	DeviceType string `form:"device_type"`
}

// EnrollPayload is the one-time handshake body sent by a device agent.
type EnrollPayload struct {
	EnrollmentCode string     `json:"enrollmentCode"`
	DeviceInfo     DeviceInfo `json:"deviceInfo"`
}

// DeviceInfo is the self-description a device sends at enrollment.
type DeviceInfo struct {
	DeviceName   string `json:"deviceName"`
	IMEI         string `json:"imei,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	DeviceType   string `json:"deviceType,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
	AppVersion   string `json:"appVersion,omitempty"`
	BatteryLevel int    `json:"batteryLevel,omitempty"`
	Location     string `json:"location,omitempty"`
	PushToken    string `json:"pushToken,omitempty"`
}

// EnrollResponse carries the bearer credential back to the agent.
type EnrollResponse struct {
	Success       bool   `json:"success"`
	Token         string `json:"token"`
	DeviceID      uint   `json:"deviceId"`
	ServerVersion string `json:"serverVersion"`
}

// StatusPayload is the heartbeat telemetry push.
type StatusPayload struct {
	BatteryLevel int    `json:"batteryLevel"`
	Location     string `json:"location,omitempty"`
	IsOnline     bool   `json:"isOnline"`
	IsKioskMode  *bool  `json:"isKioskMode,omitempty"`
	AppVersion   string `json:"appVersion,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
}

// ResultPayload reports the outcome of one executed command.
type ResultPayload struct {
	Success  bool    `json:"success"`
	Error    string  `json:"error,omitempty"`
	Response JSONMap `json:"response,omitempty"`
}

// ChatPayload is a console assistant request.
type ChatPayload struct {
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}
