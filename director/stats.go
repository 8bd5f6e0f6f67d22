package director

import (
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
)

// DashboardStats is the aggregate view the console dashboard renders.
type DashboardStats struct {
	TotalDevices     int64 `json:"totalDevices"`
	OnlineDevices    int64 `json:"onlineDevices"`
	OfflineDevices   int64 `json:"offlineDevices"`
	WarningDevices   int64 `json:"warningDevices"`
	KioskDevices     int64 `json:"kioskDevices"`
	PolicyViolations int64 `json:"policyViolations"`
	CriticalAlerts   int64 `json:"criticalAlerts"`
}

const (
	policyStaleAfter    = 24 * time.Hour
	criticalBatteryNeed = 15
)

func (d *Director) GetDashboardStats() (DashboardStats, error) {
	var stats DashboardStats

	staleBefore := time.Now().UTC().Add(-policyStaleAfter)

	counts := []func() error{
		func() error {
			return d.db.Model(&types.Device{}).Count(&stats.TotalDevices).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("status = ?", types.DeviceStatusOnline).
				Count(&stats.OnlineDevices).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("status = ?", types.DeviceStatusOffline).
				Count(&stats.OfflineDevices).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("status = ?", types.DeviceStatusWarning).
				Count(&stats.WarningDevices).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("is_kiosk_mode = ?", true).
				Count(&stats.KioskDevices).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("status = ? OR last_seen < ?", types.DeviceStatusWarning, staleBefore).
				Count(&stats.PolicyViolations).Error
		},
		func() error {
			return d.db.Model(&types.Device{}).
				Where("status = ? OR battery_level < ?", types.DeviceStatusOffline, criticalBatteryNeed).
				Count(&stats.CriticalAlerts).Error
		},
	}

	for _, count := range counts {
		if err := count(); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// StatsHandler serves GET /api/stats for the console dashboard.
func (d *Director) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := d.GetDashboardStats()
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
