package director

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceControlHandlerQueuesCommand(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "kiosk-01")

	body, _ := json.Marshal(types.ControlPayload{Action: "wifi", Enabled: false})
	req := httptest.NewRequest("POST", "/api/devices/1/controls", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": strconv.Itoa(int(device.ID))})
	w := httptest.NewRecorder()

	d.DeviceControlHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "wifi_disable", pending[0].Command)
	assert.Equal(t, "console", pending[0].IssuedBy)

	logs := deviceLogs(t, d, device.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "wifi_disabled", logs[0].Action)
	assert.Equal(t, false, logs[0].Details["enabled"])
}

func TestDeviceControlHandlerRejectsUnknownAction(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "kiosk-02")

	body, _ := json.Marshal(types.ControlPayload{Action: "flux_capacitor", Enabled: true})
	req := httptest.NewRequest("POST", "/api/devices/1/controls", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": strconv.Itoa(int(device.ID))})
	w := httptest.NewRecorder()

	d.DeviceControlHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// nothing queued, nothing audited
	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, deviceLogs(t, d, device.ID))
}

func TestBulkControlFanOut(t *testing.T) {
	d := testDirector(t)
	first := seedDevice(t, d, "fleet-01")
	second := seedDevice(t, d, "fleet-02")

	body, _ := json.Marshal(types.BulkControlPayload{
		DeviceIDs: []uint{first.ID, second.ID},
		Controls:  map[string]bool{"gps": true},
	})
	req := httptest.NewRequest("POST", "/api/devices/bulk/controls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	d.BulkControlHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// one command and one audit entry per device
	for _, device := range []types.Device{first, second} {
		pending, err := d.PendingCommands(device.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "gps_enable", pending[0].Command)

		logs := deviceLogs(t, d, device.ID)
		require.Len(t, logs, 1)
		assert.Equal(t, "bulk_gps_enabled", logs[0].Action)
		assert.Equal(t, true, logs[0].Details["bulk"])
	}
}

func TestBulkControlContinuesPastMissingDevice(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "fleet-03")

	body, _ := json.Marshal(types.BulkControlPayload{
		DeviceIDs: []uint{9999, device.ID},
		Controls:  map[string]bool{"camera": false},
	})
	req := httptest.NewRequest("POST", "/api/devices/bulk/controls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	d.BulkControlHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []types.BulkControlResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "error", resp.Results[0].Status)
	assert.Equal(t, "commands_queued", resp.Results[1].Status)

	// the missing device did not stop the real one from being served
	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "camera_disable", pending[0].Command)
}

func TestBulkControlRejectsUnknownActionUpFront(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "fleet-04")

	body, _ := json.Marshal(types.BulkControlPayload{
		DeviceIDs: []uint{device.ID},
		Controls:  map[string]bool{"gps": true, "warp_drive": true},
	})
	req := httptest.NewRequest("POST", "/api/devices/bulk/controls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	d.BulkControlHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestKioskHandlerTogglesModeAndQueuesCommand(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "kiosk-03")

	body, _ := json.Marshal(types.KioskPayload{
		Enabled: true,
		Config:  types.JSONMap{"app": "com.fortress.pos"},
	})
	req := httptest.NewRequest("POST", "/api/devices/1/kiosk", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": strconv.Itoa(int(device.ID))})
	w := httptest.NewRecorder()

	d.KioskHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated types.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.IsKioskMode)
	assert.Equal(t, "com.fortress.pos", updated.KioskConfig["app"])

	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "kiosk_enable", pending[0].Command)

	logs := deviceLogs(t, d, device.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "kiosk_enabled", logs[0].Action)
}
