package director

import (
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type LogHolder struct {
	DeviceID      string
	DeviceName    string
	DeviceIMEI    string
	CommandID     string
	CommandName   string
	CommandStatus string
	Action        string
	Message       string
	Metric        string
}

func processFields(logholder LogHolder) *log.Entry {
	logger := log.WithFields(log.Fields{})
	if logholder.DeviceID != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_id": logholder.DeviceID,
			})
	}

	if logholder.DeviceName != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_name": logholder.DeviceName,
			})
	}

	if logholder.DeviceIMEI != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_imei": logholder.DeviceIMEI,
			})
	}

	if logholder.CommandID != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_id": logholder.CommandID,
			})
	}

	if logholder.CommandName != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_name": logholder.CommandName,
			})
	}

	if logholder.CommandStatus != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_status": logholder.CommandStatus,
			})
	}

	if logholder.Action != "" {
		logger = logger.WithFields(
			log.Fields{
				"action": logholder.Action,
			})
	}

	if logholder.Metric != "" {
		logger = logger.WithFields(
			log.Fields{
				"metric": logholder.Metric,
			})
	}

	return logger
}

func DebugLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Debug(logholder.Message)
}

func InfoLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Info(logholder.Message)
}

func WarnLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Warn(logholder.Message)
}

func ErrorLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Error(logholder.Message)
}

// CreateDeviceLog appends one audit entry. The audit trail is append-only;
// nothing in this package updates or deletes entries.
func (d *Director) CreateDeviceLog(deviceID uint, action string, details types.JSONMap) error {
	entry := types.DeviceLog{
		DeviceID:  deviceID,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := d.db.Create(&entry).Error; err != nil {
		return errors.Wrapf(err, "create device log %v for device %v", action, deviceID)
	}
	return nil
}

// GetDeviceLogs returns the audit trail for one device, oldest first.
func (d *Director) GetDeviceLogs(deviceID uint) ([]types.DeviceLog, error) {
	var logs []types.DeviceLog
	err := d.db.Where("device_id = ?", deviceID).Order("id").Find(&logs).Error
	if err != nil {
		return logs, errors.Wrap(err, "get device logs")
	}
	return logs, nil
}

// DeviceLogsHandler serves GET /api/devices/{id}/logs.
func (d *Director) DeviceLogsHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	logs, err := d.GetDeviceLogs(deviceID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch device logs")
		return
	}
	jsonResponse(w, http.StatusOK, logs)
}

func deviceIDFromRequest(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	return parseID(vars["id"])
}
