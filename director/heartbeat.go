package director

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
)

// DeviceStatusHandler serves POST /api/device/status: the periodic heartbeat
// an enrolled agent pushes. Telemetry is taken at face value; the device's
// status is derived from isOnline, never from any client-supplied status.
func (d *Director) DeviceStatusHandler(w http.ResponseWriter, r *http.Request) {
	device, err := d.authenticateDevice(r)
	if err != nil {
		deviceAuthError(w, err)
		return
	}

	var payload types.StatusPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid status payload")
		return
	}

	if payload.BatteryLevel < 0 || payload.BatteryLevel > 100 {
		errorResponse(w, http.StatusBadRequest, "batteryLevel must be between 0 and 100")
		return
	}

	status := types.DeviceStatusOffline
	if payload.IsOnline {
		status = types.DeviceStatusOnline
	}

	updates := map[string]interface{}{
		"status":        status,
		"battery_level": payload.BatteryLevel,
		"last_seen":     time.Now().UTC(),
	}
	if payload.Location != "" {
		updates["location"] = payload.Location
	}
	if payload.AppVersion != "" {
		updates["app_version"] = payload.AppVersion
	}
	if payload.OSVersion != "" {
		updates["os_version"] = payload.OSVersion
	}
	if payload.IsKioskMode != nil {
		updates["is_kiosk_mode"] = *payload.IsKioskMode
	}

	err = d.db.Model(&types.Device{}).Where("id = ?", device.ID).Updates(updates).Error
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
		errorResponse(w, http.StatusInternalServerError, "failed to record device status")
		return
	}

	HeartbeatsReceived.Inc()
	DebugLogger(LogHolder{
		Message:    "Heartbeat received",
		DeviceID:   fmt.Sprint(device.ID),
		DeviceName: device.Name,
	})

	jsonResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeviceCommandPollHandler serves GET /api/device/commands: the agent's poll
// for work. Returns every pending command for the device, oldest first. The
// poll itself changes nothing server-side, so delivery stays at-least-once.
func (d *Director) DeviceCommandPollHandler(w http.ResponseWriter, r *http.Request) {
	device, err := d.authenticateDevice(r)
	if err != nil {
		deviceAuthError(w, err)
		return
	}

	commands, err := d.PendingCommands(device.ID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
		errorResponse(w, http.StatusInternalServerError, "failed to load pending commands")
		return
	}

	jsonResponse(w, http.StatusOK, commands)
}

// DeviceCommandResultHandler serves POST /api/device/command/{id}/result: the
// agent reporting the outcome of a command it executed. Reports against
// commands belonging to other devices 404 rather than leak their existence.
// Duplicate reports are accepted and ignored.
func (d *Director) DeviceCommandResultHandler(w http.ResponseWriter, r *http.Request) {
	device, err := d.authenticateDevice(r)
	if err != nil {
		deviceAuthError(w, err)
		return
	}

	commandID, err := commandIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid command id")
		return
	}

	command, err := d.GetCommand(commandID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "Command not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error(), CommandID: fmt.Sprint(commandID)})
		errorResponse(w, http.StatusInternalServerError, "failed to load command")
		return
	}
	if command.DeviceID != device.ID {
		errorResponse(w, http.StatusNotFound, "Command not found")
		return
	}

	var payload types.ResultPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid result payload")
		return
	}

	updated, applied, err := d.ApplyCommandResult(commandID, payload.Success, payload.Error, payload.Response)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), CommandID: fmt.Sprint(commandID)})
		errorResponse(w, http.StatusInternalServerError, "failed to record command result")
		return
	}
	if !applied {
		DebugLogger(LogHolder{
			Message:       "Duplicate command result ignored",
			CommandID:     fmt.Sprint(commandID),
			CommandStatus: updated.Status,
		})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"command": updated,
	})
}

func deviceAuthError(w http.ResponseWriter, err error) {
	if err == errUnauthorizedDevice {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	ErrorLogger(LogHolder{Message: err.Error()})
	errorResponse(w, http.StatusInternalServerError, "authentication failed")
}
