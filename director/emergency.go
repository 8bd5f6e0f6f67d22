package director

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/fortressmdm/fortressmdm/utils"
)

// EmergencyHandler serves POST /api/devices/{id}/emergency: the privileged
// lock/wipe path. Both preconditions are checked before any record is
// written; a bad secret or missing justification leaves the store untouched.
func (d *Director) EmergencyHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var payload types.EmergencyPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid emergency payload")
		return
	}

	secret := utils.EmergencyPassword()
	if secret == "" || payload.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(payload.AdminPassword), []byte(secret)) != 1 {
		WarnLogger(LogHolder{Message: "Emergency action rejected: invalid admin password", DeviceID: fmt.Sprint(deviceID)})
		errorResponse(w, http.StatusUnauthorized, "Invalid admin password")
		return
	}

	if payload.Action != "lock" && payload.Action != "wipe" {
		errorResponse(w, http.StatusBadRequest, "Invalid emergency action")
		return
	}
	if payload.Reason == "" {
		errorResponse(w, http.StatusBadRequest, "A reason is required for emergency actions")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to execute emergency action")
		return
	}

	commandName := "emergency_" + payload.Action
	command, err := d.createCommand(device, commandName, "admin")
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to execute emergency action")
		return
	}

	// The stored details never include the secret.
	err = d.CreateDeviceLog(device.ID, commandName, types.JSONMap{
		"action":        payload.Action,
		"reason":        payload.Reason,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"adminPassword": "***",
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
	}

	InfoLogger(LogHolder{
		Message:     "Emergency command queued",
		DeviceID:    fmt.Sprint(device.ID),
		DeviceName:  device.Name,
		CommandID:   fmt.Sprint(command.ID),
		CommandName: commandName,
	})

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message":   fmt.Sprintf("Emergency %s command sent successfully", payload.Action),
		"commandId": command.ID,
	})
}
