package director

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/fortressmdm/fortressmdm/utils"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	version "github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

// ServerVersion is reported to agents at enrollment.
const ServerVersion = "1.0.0"

var errUnauthorizedDevice = errors.New("missing or unknown device token")

// EnrollHandler serves POST /api/enroll: the one-time handshake that trades
// the shared enrollment code for a per-device bearer token.
func (d *Director) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	var payload types.EnrollPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid enrollment payload")
		return
	}

	code := utils.EnrollmentCode()
	if code == "" || payload.EnrollmentCode == "" ||
		subtle.ConstantTimeCompare([]byte(payload.EnrollmentCode), []byte(code)) != 1 {
		WarnLogger(LogHolder{Message: "Enrollment rejected: invalid enrollment code"})
		errorResponse(w, http.StatusBadRequest, "Invalid enrollment code")
		return
	}

	info := payload.DeviceInfo
	if info.DeviceName == "" {
		errorResponse(w, http.StatusBadRequest, "deviceName is required")
		return
	}
	if info.IMEI == "" && info.SerialNumber == "" {
		errorResponse(w, http.StatusBadRequest, "either imei or serialNumber must be set")
		return
	}
	if info.IMEI != "" && len(info.IMEI) != imeiLength {
		errorResponse(w, http.StatusBadRequest, ErrInvalidIMEI.Error())
		return
	}
	deviceType := info.DeviceType
	if deviceType == "" {
		deviceType = "android"
	}
	if !types.ValidDeviceType(deviceType) {
		errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unsupported device type %q", deviceType))
		return
	}
	if info.BatteryLevel < 0 || info.BatteryLevel > 100 {
		errorResponse(w, http.StatusBadRequest, "batteryLevel must be between 0 and 100")
		return
	}

	if err := checkAgentVersion(info.AppVersion); err != nil {
		WarnLogger(LogHolder{Message: err.Error(), DeviceName: info.DeviceName})
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	device := types.Device{
		Name:         info.DeviceName,
		IMEI:         info.IMEI,
		SerialNumber: info.SerialNumber,
		DeviceType:   deviceType,
		Status:       types.DeviceStatusOnline,
		BatteryLevel: info.BatteryLevel,
		LastSeen:     now,
		Location:     info.Location,
		OSVersion:    info.OSVersion,
		AppVersion:   info.AppVersion,
		PushToken:    info.PushToken,
		APIToken:     uuid.NewString(),
		EnrolledAt:   now,
	}

	if err := d.db.Create(&device).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "Enrollment failed")
		return
	}

	err := d.CreateDeviceLog(device.ID, "enrolled", types.JSONMap{
		"appVersion": info.AppVersion,
		"osVersion":  info.OSVersion,
	})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceID: fmt.Sprint(device.ID)})
	}

	InfoLogger(LogHolder{
		Message:    "Device enrolled",
		DeviceID:   fmt.Sprint(device.ID),
		DeviceName: device.Name,
		DeviceIMEI: device.IMEI,
	})

	jsonResponse(w, http.StatusOK, types.EnrollResponse{
		Success:       true,
		Token:         device.APIToken,
		DeviceID:      device.ID,
		ServerVersion: ServerVersion,
	})
}

// checkAgentVersion refuses agents below the configured floor. No floor, or
// an agent that does not report a version, passes.
func checkAgentVersion(appVersion string) error {
	minVersion := utils.MinAgentVersion()
	if minVersion == "" || appVersion == "" {
		return nil
	}

	minimum, err := version.NewVersion(minVersion)
	if err != nil {
		// bad server config should not lock every agent out
		ErrorLogger(LogHolder{Message: errors.Wrap(err, "parse min-agent-version").Error()})
		return nil
	}

	reported, err := version.NewVersion(appVersion)
	if err != nil {
		return errors.Errorf("unparseable agent version %q", appVersion)
	}

	if reported.LessThan(minimum) {
		return errors.Errorf("agent version %s is older than the required minimum %s", appVersion, minVersion)
	}
	return nil
}

// authenticateDevice resolves the bearer token on a device request back to
// its device record. Token lookups are cached in redis when a cache is
// configured.
func (d *Director) authenticateDevice(r *http.Request) (types.Device, error) {
	var device types.Device

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return device, errUnauthorizedDevice
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return device, errUnauthorizedDevice
	}

	if id, ok := d.cachedDeviceID(r.Context(), token); ok {
		device, err := d.GetDevice(id)
		if err == nil && device.APIToken == token {
			return device, nil
		}
		// stale cache entry: fall through to the store
	}

	device, err := d.GetDeviceByToken(token)
	if err != nil {
		if isNotFound(err) {
			return device, errUnauthorizedDevice
		}
		return device, err
	}

	d.cacheDeviceID(r.Context(), token, device.ID)
	return device, nil
}

func tokenCacheKey(token string) string {
	return "device_token:" + token
}

func (d *Director) cachedDeviceID(ctx context.Context, token string) (uint, bool) {
	if d.tokenCache == nil {
		return 0, false
	}
	val, err := d.tokenCache.Get(ctx, tokenCacheKey(token)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			ErrorLogger(LogHolder{Message: errors.Wrap(err, "token cache get").Error()})
		}
		return 0, false
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (d *Director) cacheDeviceID(ctx context.Context, token string, id uint) {
	if d.tokenCache == nil {
		return
	}
	err := d.tokenCache.Set(ctx, tokenCacheKey(token), strconv.FormatUint(uint64(id), 10), time.Hour).Err()
	if err != nil {
		ErrorLogger(LogHolder{Message: errors.Wrap(err, "token cache set").Error()})
	}
}
