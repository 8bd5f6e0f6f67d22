package agent

import (
	"strings"
	"sync"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/pkg/errors"
)

// controllable hardware features and their default state
var defaultFeatures = map[string]bool{
	"wifi":        true,
	"mobile_data": true,
	"gps":         true,
	"bluetooth":   true,
	"camera":      true,
	"microphone":  true,
	"usb":         false,
}

// deviceState is the simulated handset the agent manages. Real deployments
// replace execute with platform calls; the protocol above it stays the same.
type deviceState struct {
	mu sync.Mutex

	batteryLevel int
	location     string
	osVersion    string
	appVersion   string
	locked       bool
	wiped        bool
	kioskMode    bool
	features     map[string]bool
	lastDrain    time.Time
}

func newDeviceState() *deviceState {
	features := make(map[string]bool, len(defaultFeatures))
	for name, enabled := range defaultFeatures {
		features[name] = enabled
	}
	return &deviceState{
		batteryLevel: 100,
		features:     features,
		lastDrain:    time.Now(),
	}
}

func (s *deviceState) applyInfo(info types.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.BatteryLevel > 0 {
		s.batteryLevel = info.BatteryLevel
	}
	s.location = info.Location
	s.osVersion = info.OSVersion
	s.appVersion = info.AppVersion
}

// statusPayload drains the battery roughly one percent per minute of uptime
// so a long-running simulated fleet looks alive on the dashboard.
func (s *deviceState) statusPayload() types.StatusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := int(time.Since(s.lastDrain) / time.Minute)
	if drained > 0 {
		s.batteryLevel -= drained
		if s.batteryLevel < 0 {
			s.batteryLevel = 0
		}
		s.lastDrain = time.Now()
	}

	kiosk := s.kioskMode
	return types.StatusPayload{
		BatteryLevel: s.batteryLevel,
		Location:     s.location,
		IsOnline:     !s.wiped,
		IsKioskMode:  &kiosk,
		AppVersion:   s.appVersion,
		OSVersion:    s.osVersion,
	}
}

// execute applies one server command to the simulated device and returns the
// detail map the server stores alongside the result.
func (s *deviceState) execute(command string) (types.JSONMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wiped {
		return nil, errors.Errorf("device is wiped, cannot run %q", command)
	}

	switch command {
	case "lock", "emergency_lock":
		s.locked = true
		return types.JSONMap{"locked": true}, nil

	case "unlock":
		s.locked = false
		return types.JSONMap{"locked": false}, nil

	case "reboot":
		s.locked = false
		return types.JSONMap{"rebooted": true}, nil

	case "wipe", "emergency_wipe":
		s.wiped = true
		s.kioskMode = false
		for name := range s.features {
			s.features[name] = defaultFeatures[name]
		}
		return types.JSONMap{"wiped": true}, nil

	case "locate":
		location := s.location
		if location == "" {
			location = "unknown"
		}
		return types.JSONMap{"location": location}, nil

	case "kiosk_enable":
		s.kioskMode = true
		return types.JSONMap{"kioskMode": true}, nil

	case "kiosk_disable":
		s.kioskMode = false
		return types.JSONMap{"kioskMode": false}, nil
	}

	if feature, enabled, ok := parseFeatureToggle(command); ok {
		if _, known := s.features[feature]; !known {
			return nil, errors.Errorf("unknown feature %q", feature)
		}
		s.features[feature] = enabled
		return types.JSONMap{feature: enabled}, nil
	}

	return nil, errors.Errorf("unsupported command %q", command)
}

func parseFeatureToggle(command string) (feature string, enabled bool, ok bool) {
	switch {
	case strings.HasSuffix(command, "_enable"):
		return strings.TrimSuffix(command, "_enable"), true, true
	case strings.HasSuffix(command, "_disable"):
		return strings.TrimSuffix(command, "_disable"), false, true
	}
	return "", false, false
}
