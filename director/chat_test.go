package director

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRequest(t *testing.T, message string) *http.Request {
	t.Helper()
	body, err := json.Marshal(types.ChatPayload{Message: message, UserID: "operator"})
	require.NoError(t, err)
	return httptest.NewRequest("POST", "/api/chat", bytes.NewReader(body))
}

func TestChatHandlerPersistsExchange(t *testing.T) {
	d := testDirector(t)
	seedDevice(t, d, "store-01")

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, "show device status"))
	require.Equal(t, http.StatusOK, w.Code)

	var message types.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &message))
	assert.Contains(t, message.Response, "1 online")
	assert.Equal(t, "operator", message.UserID)

	// the exchange, response included, is stored
	var stored types.ChatMessage
	require.NoError(t, d.db.First(&stored, message.ID).Error)
	assert.Equal(t, message.Response, stored.Response)
}

func TestChatHandlerLocksDeviceByIMEI(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "store-02")

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, fmt.Sprintf("lock the device with imei %s", device.IMEI)))
	require.Equal(t, http.StatusOK, w.Code)

	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "lock", pending[0].Command)
	assert.Equal(t, chatIssuer, pending[0].IssuedBy)
}

func TestChatHandlerControlsFeatureByIMEI(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "store-03")

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, fmt.Sprintf("disable wifi on device %s", device.IMEI)))
	require.Equal(t, http.StatusOK, w.Code)

	pending, err := d.PendingCommands(device.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "wifi_disable", pending[0].Command)
}

func TestChatHandlerUnknownIMEI(t *testing.T) {
	d := testDirector(t)

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, "lock the device with imei 000000000000000"))
	require.Equal(t, http.StatusOK, w.Code)

	var message types.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &message))
	assert.Contains(t, message.Response, "No device found")
}

func TestChatHandlerRejectsEmptyMessage(t *testing.T) {
	d := testDirector(t)

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, "   "))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandlerOfflineList(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "store-04")
	require.NoError(t, d.db.Model(&device).Update("status", types.DeviceStatusOffline).Error)

	w := httptest.NewRecorder()
	d.ChatHandler(w, chatRequest(t, "which devices are offline?"))
	require.Equal(t, http.StatusOK, w.Code)

	var message types.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &message))
	assert.Contains(t, message.Response, "store-04")
}
