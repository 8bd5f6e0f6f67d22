package director

import (
	"fmt"
	"net/http"

	"github.com/fortressmdm/fortressmdm/types"
)

// Feature toggles a device control request may name.
var validControlActions = []string{
	"wifi", "mobile_data", "gps", "bluetooth", "camera", "microphone", "usb",
}

func validControlAction(action string) bool {
	for _, a := range validControlActions {
		if a == action {
			return true
		}
	}
	return false
}

func controlCommandName(action string, enabled bool) string {
	if enabled {
		return action + "_enable"
	}
	return action + "_disable"
}

func controlLogAction(action string, enabled bool) string {
	if enabled {
		return action + "_enabled"
	}
	return action + "_disabled"
}

// QueueControl synthesizes the feature-toggle command and its audit entry.
// Two separate records for one causal event; no shared transaction.
func (d *Director) QueueControl(device types.Device, action string, enabled bool, issuedBy string) (types.DeviceCommand, error) {
	command, err := d.createCommand(device, controlCommandName(action, enabled), issuedBy)
	if err != nil {
		return command, err
	}

	err = d.CreateDeviceLog(device.ID, controlLogAction(action, enabled), types.JSONMap{
		"action":  action,
		"enabled": enabled,
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
	}
	return command, nil
}

// DeviceControlHandler serves POST /api/devices/{id}/controls.
func (d *Director) DeviceControlHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var payload types.ControlPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid control payload")
		return
	}
	if !validControlAction(payload.Action) {
		errorResponse(w, http.StatusBadRequest, "Invalid control action")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to execute device control")
		return
	}

	command, err := d.QueueControl(device, payload.Action, payload.Enabled, "console")
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to execute device control")
		return
	}

	state := "disabled"
	if payload.Enabled {
		state = "enabled"
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s %s successfully", payload.Action, state),
		"command": command.Command,
	})
}

// BulkControlHandler serves POST /api/devices/bulk/controls. The fan-out is
// sequential and each (device, feature) write is independent: a store error
// on one device does not touch what was already queued and does not stop the
// remaining devices from being attempted.
func (d *Director) BulkControlHandler(w http.ResponseWriter, r *http.Request) {
	var payload types.BulkControlPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid bulk control payload")
		return
	}
	if len(payload.DeviceIDs) == 0 || len(payload.Controls) == 0 {
		errorResponse(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	for action := range payload.Controls {
		if !validControlAction(action) {
			errorResponse(w, http.StatusBadRequest, "Invalid control action")
			return
		}
	}

	results := make([]types.BulkControlResult, 0, len(payload.DeviceIDs))
	for _, deviceID := range payload.DeviceIDs {
		status := "commands_queued"

		device, err := d.GetDevice(deviceID)
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(deviceID)})
			results = append(results, types.BulkControlResult{DeviceID: deviceID, Status: "error"})
			continue
		}

		for action, enabled := range payload.Controls {
			command, err := d.createCommand(device, controlCommandName(action, enabled), "console")
			if err != nil {
				ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(deviceID)})
				status = "error"
				continue
			}

			err = d.CreateDeviceLog(device.ID, "bulk_"+controlLogAction(action, enabled), types.JSONMap{
				"action":    action,
				"enabled":   enabled,
				"bulk":      true,
				"commandId": command.ID,
			})
			if err != nil {
				ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(deviceID)})
			}
		}

		results = append(results, types.BulkControlResult{DeviceID: deviceID, Status: status})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Bulk controls applied to %d devices", len(payload.DeviceIDs)),
		"results": results,
	})
}

// KioskHandler serves POST /api/devices/{id}/kiosk: stores the kiosk state
// and config, queues the matching command and writes the audit entry.
func (d *Director) KioskHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var payload types.KioskPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid kiosk payload")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update kiosk mode")
		return
	}

	config := payload.Config
	if config == nil {
		config = types.JSONMap{}
	}

	err = d.db.Model(&device).Updates(map[string]interface{}{
		"is_kiosk_mode": payload.Enabled,
		"kiosk_config":  config,
	}).Error
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update kiosk mode")
		return
	}

	commandName := "kiosk_disable"
	logAction := "kiosk_disabled"
	if payload.Enabled {
		commandName = "kiosk_enable"
		logAction = "kiosk_enabled"
	}

	if _, err := d.createCommand(device, commandName, "console"); err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update kiosk mode")
		return
	}

	err = d.CreateDeviceLog(device.ID, logAction, types.JSONMap{"config": config})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
	}

	device, err = d.GetDevice(deviceID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update kiosk mode")
		return
	}
	jsonResponse(w, http.StatusOK, device)
}
