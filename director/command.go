package director

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// createCommand inserts a new command record. Status is always pending here,
// whatever the caller asked for; the only path out of pending is a result
// report. The audit entry for the causal event is written by the caller:
// command and audit are two independent writes with no shared transaction.
func (d *Director) createCommand(device types.Device, name, issuedBy string) (types.DeviceCommand, error) {
	command := types.DeviceCommand{
		DeviceID: device.ID,
		Command:  name,
		Status:   types.CommandStatusPending,
		IssuedBy: issuedBy,
		IssuedAt: time.Now().UTC(),
	}
	if err := d.db.Create(&command).Error; err != nil {
		return command, errors.Wrapf(err, "create command %v for device %v", name, device.ID)
	}

	CommandsIssued.Inc()
	InfoLogger(LogHolder{
		Message:     "Command queued",
		DeviceID:    fmt.Sprint(device.ID),
		DeviceName:  device.Name,
		CommandID:   fmt.Sprint(command.ID),
		CommandName: name,
	})

	d.schedulePush(device, command)
	return command, nil
}

// CreateCommand is the console create path: queue the command, then append
// the command_issued audit entry. A failed audit write is logged and does not
// undo the command.
func (d *Director) CreateCommand(device types.Device, name, issuedBy string) (types.DeviceCommand, error) {
	command, err := d.createCommand(device, name, issuedBy)
	if err != nil {
		return command, err
	}

	err = d.CreateDeviceLog(device.ID, "command_issued_"+name, types.JSONMap{
		"commandId": command.ID,
		"issuedBy":  issuedBy,
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), CommandID: fmt.Sprint(command.ID)})
	}

	return command, nil
}

// GetDeviceCommands returns every command ever issued against a device,
// oldest first.
func (d *Director) GetDeviceCommands(deviceID uint) ([]types.DeviceCommand, error) {
	var commands []types.DeviceCommand
	err := d.db.Where("device_id = ?", deviceID).Order("id").Find(&commands).Error
	if err != nil {
		return commands, errors.Wrap(err, "get device commands")
	}
	return commands, nil
}

// PendingCommands is the device poll read: pending commands only, creation
// order, no mutation. Unexecuted commands stay pending for redelivery on the
// next heartbeat.
func (d *Director) PendingCommands(deviceID uint) ([]types.DeviceCommand, error) {
	var commands []types.DeviceCommand
	err := d.db.
		Where("device_id = ? AND status = ?", deviceID, types.CommandStatusPending).
		Order("id").
		Find(&commands).Error
	if err != nil {
		return commands, errors.Wrap(err, "get pending commands")
	}
	return commands, nil
}

func (d *Director) GetCommand(id uint) (types.DeviceCommand, error) {
	var command types.DeviceCommand
	err := d.db.First(&command, id).Error
	if err != nil {
		return command, errors.Wrapf(err, "GetCommand %v", id)
	}
	return command, nil
}

// ApplyCommandResult moves a pending command to its terminal state. The
// pending guard lives in the UPDATE predicate, so a second report (or a
// racing one) is a no-op: no field changes and no duplicate audit entry.
// The returned bool reports whether this call performed the transition.
func (d *Director) ApplyCommandResult(commandID uint, success bool, errMsg string, response types.JSONMap) (types.DeviceCommand, bool, error) {
	command, err := d.GetCommand(commandID)
	if err != nil {
		return command, false, err
	}

	status := types.CommandStatusCompleted
	if !success {
		status = types.CommandStatusFailed
	}

	if response == nil {
		response = types.JSONMap{}
	}
	response["success"] = success
	if errMsg != "" {
		response["error"] = errMsg
	}

	now := time.Now().UTC()
	res := d.db.Model(&types.DeviceCommand{}).
		Where("id = ? AND status = ?", commandID, types.CommandStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
			"response":     response,
		})
	if res.Error != nil {
		return command, false, errors.Wrapf(res.Error, "apply result for command %v", commandID)
	}

	command, err = d.GetCommand(commandID)
	if err != nil {
		return command, false, err
	}

	if res.RowsAffected == 0 {
		// already terminal: double report or lost race
		DebugLogger(LogHolder{
			Message:       "Ignoring result report for non-pending command",
			CommandID:     fmt.Sprint(commandID),
			CommandStatus: command.Status,
		})
		return command, false, nil
	}

	if success {
		CommandsCompleted.Inc()
	} else {
		CommandsFailed.Inc()
	}

	err = d.CreateDeviceLog(command.DeviceID, "command_"+status+"_"+command.Command, types.JSONMap{
		"commandId": command.ID,
		"success":   success,
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), CommandID: fmt.Sprint(commandID)})
	}

	InfoLogger(LogHolder{
		Message:       "Command result applied",
		CommandID:     fmt.Sprint(command.ID),
		CommandName:   command.Command,
		CommandStatus: command.Status,
		DeviceID:      fmt.Sprint(command.DeviceID),
	})
	return command, true, nil
}

// PostCommandHandler serves POST /api/devices/{id}/commands.
func (d *Director) PostCommandHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var payload types.CommandPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid command payload")
		return
	}
	if payload.Command == "" {
		errorResponse(w, http.StatusBadRequest, "command is required")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to create device command")
		return
	}

	command, err := d.CreateCommand(device, payload.Command, payload.IssuedBy)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to create device command")
		return
	}
	jsonResponse(w, http.StatusCreated, command)
}

// DeviceCommandsHandler serves GET /api/devices/{id}/commands: the full,
// unfiltered history.
func (d *Director) DeviceCommandsHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	commands, err := d.GetDeviceCommands(deviceID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch device commands")
		return
	}
	jsonResponse(w, http.StatusOK, commands)
}

func commandIDFromRequest(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	return parseID(vars["id"])
}
