package director

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrollRequest(t *testing.T, payload types.EnrollPayload) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return httptest.NewRequest("POST", "/api/enroll", bytes.NewReader(body))
}

func TestEnrollHandlerIssuesToken(t *testing.T) {
	t.Setenv("MDM_ENROLLMENT_CODE", "FLEET-2026")

	d := testDirector(t)

	w := httptest.NewRecorder()
	d.EnrollHandler(w, enrollRequest(t, types.EnrollPayload{
		EnrollmentCode: "FLEET-2026",
		DeviceInfo: types.DeviceInfo{
			DeviceName:   "floor-tablet",
			IMEI:         "356938035643809",
			DeviceType:   "android",
			AppVersion:   "1.2.0",
			BatteryLevel: 90,
		},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.EnrollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, ServerVersion, resp.ServerVersion)

	device, err := d.GetDeviceByToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "floor-tablet", device.Name)
	assert.Equal(t, types.DeviceStatusOnline, device.Status)

	logs := deviceLogs(t, d, device.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "enrolled", logs[0].Action)
	// the token is not part of the audit entry
	_, hasToken := logs[0].Details["token"]
	assert.False(t, hasToken)
}

func TestEnrollHandlerWrongCode(t *testing.T) {
	t.Setenv("MDM_ENROLLMENT_CODE", "FLEET-2026")

	d := testDirector(t)

	w := httptest.NewRecorder()
	d.EnrollHandler(w, enrollRequest(t, types.EnrollPayload{
		EnrollmentCode: "WRONG",
		DeviceInfo:     types.DeviceInfo{DeviceName: "floor-tablet", SerialNumber: "SN1"},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, d.db.Model(&types.Device{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnrollHandlerUnconfiguredCodeRejectsAll(t *testing.T) {
	t.Setenv("MDM_ENROLLMENT_CODE", "")

	d := testDirector(t)

	w := httptest.NewRecorder()
	d.EnrollHandler(w, enrollRequest(t, types.EnrollPayload{
		EnrollmentCode: "",
		DeviceInfo:     types.DeviceInfo{DeviceName: "floor-tablet", SerialNumber: "SN1"},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollHandlerRejectsMalformedIMEI(t *testing.T) {
	t.Setenv("MDM_ENROLLMENT_CODE", "FLEET-2026")

	d := testDirector(t)

	w := httptest.NewRecorder()
	d.EnrollHandler(w, enrollRequest(t, types.EnrollPayload{
		EnrollmentCode: "FLEET-2026",
		DeviceInfo:     types.DeviceInfo{DeviceName: "floor-tablet", IMEI: "12345"},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollHandlerMinAgentVersion(t *testing.T) {
	t.Setenv("MDM_ENROLLMENT_CODE", "FLEET-2026")
	t.Setenv("MDM_MIN_AGENT_VERSION", "1.2.0")

	d := testDirector(t)

	tests := []struct {
		name       string
		appVersion string
		want       int
	}{
		{"older agent rejected", "1.1.9", http.StatusBadRequest},
		{"minimum accepted", "1.2.0", http.StatusOK},
		{"newer accepted", "2.0.0", http.StatusOK},
		{"unreported version passes", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			d.EnrollHandler(w, enrollRequest(t, types.EnrollPayload{
				EnrollmentCode: "FLEET-2026",
				DeviceInfo: types.DeviceInfo{
					DeviceName:   "floor-tablet",
					SerialNumber: "SN-" + tt.name,
					AppVersion:   tt.appVersion,
				},
			}))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthenticateDevice(t *testing.T) {
	d := testDirector(t)
	device := seedDevice(t, d, "floor-tablet")

	req := httptest.NewRequest("GET", "/api/device/commands", nil)
	req.Header.Set("Authorization", "Bearer "+device.APIToken)

	got, err := d.authenticateDevice(req)
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)

	req.Header.Set("Authorization", "Bearer not-a-token")
	_, err = d.authenticateDevice(req)
	assert.ErrorIs(t, err, errUnauthorizedDevice)

	req.Header.Del("Authorization")
	_, err = d.authenticateDevice(req)
	assert.ErrorIs(t, err, errUnauthorizedDevice)
}
