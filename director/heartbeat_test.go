package director

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedRequest(t *testing.T, method, url string, device types.Device, payload interface{}) *http.Request {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+device.APIToken)
	return req
}

func TestDeviceStatusHandlerDerivesStatus(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "van-01")

	w := httptest.NewRecorder()
	d.DeviceStatusHandler(w, authedRequest(t, "POST", "/api/device/status", device, types.StatusPayload{
		BatteryLevel: 42,
		Location:     "route 9",
		IsOnline:     true,
	}))
	require.Equal(t, http.StatusOK, w.Code)

	updated, err := d.GetDevice(device.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DeviceStatusOnline, updated.Status)
	assert.Equal(t, 42, updated.BatteryLevel)
	assert.Equal(t, "route 9", updated.Location)
	assert.WithinDuration(t, time.Now().UTC(), updated.LastSeen, 5*time.Second)

	// an agent reporting itself offline is recorded as offline
	w = httptest.NewRecorder()
	d.DeviceStatusHandler(w, authedRequest(t, "POST", "/api/device/status", device, types.StatusPayload{
		BatteryLevel: 41,
		IsOnline:     false,
	}))
	require.Equal(t, http.StatusOK, w.Code)

	updated, err = d.GetDevice(device.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DeviceStatusOffline, updated.Status)
}

func TestDeviceStatusHandlerRejectsBadBattery(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "van-02")

	w := httptest.NewRecorder()
	d.DeviceStatusHandler(w, authedRequest(t, "POST", "/api/device/status", device, types.StatusPayload{
		BatteryLevel: 140,
		IsOnline:     true,
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceStatusHandlerUnauthorized(t *testing.T) {
	d := testDirector(t)
	seedDevice(t, d, "van-03")

	body, _ := json.Marshal(types.StatusPayload{IsOnline: true})
	req := httptest.NewRequest("POST", "/api/device/status", bytes.NewReader(body))
	w := httptest.NewRecorder()

	d.DeviceStatusHandler(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeviceCommandPollHandler(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "van-04")

	_, err := d.CreateCommand(device, "lock", "console")
	require.NoError(t, err)
	_, err = d.CreateCommand(device, "locate", "console")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	d.DeviceCommandPollHandler(w, authedRequest(t, "GET", "/api/device/commands", device, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var commands []types.DeviceCommand
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commands))
	require.Len(t, commands, 2)
	assert.Equal(t, "lock", commands[0].Command)
	assert.Equal(t, "locate", commands[1].Command)
}

func TestDeviceCommandResultHandler(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "van-05")

	command, err := d.CreateCommand(device, "lock", "console")
	require.NoError(t, err)

	url := fmt.Sprintf("/api/device/command/%d/result", command.ID)
	req := authedRequest(t, "POST", url, device, types.ResultPayload{Success: true})
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(command.ID)})
	w := httptest.NewRecorder()

	d.DeviceCommandResultHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	updated, err := d.GetCommand(command.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CommandStatusCompleted, updated.Status)
}

// A device must not be able to complete another device's commands.
func TestDeviceCommandResultHandlerScopedToDevice(t *testing.T) {
	d := testDirector(t)
	owner := seedDevice(t, d, "van-06")
	intruder := seedDevice(t, d, "van-07")

	command, err := d.CreateCommand(owner, "wipe", "console")
	require.NoError(t, err)

	url := fmt.Sprintf("/api/device/command/%d/result", command.ID)
	req := authedRequest(t, "POST", url, intruder, types.ResultPayload{Success: true})
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(command.ID)})
	w := httptest.NewRecorder()

	d.DeviceCommandResultHandler(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	untouched, err := d.GetCommand(command.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CommandStatusPending, untouched.Status)
}
