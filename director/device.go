package director

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/pkg/errors"
	"gopkg.in/ajg/form.v1"
)

// ErrInvalidIMEI is returned for IMEI lookups with a malformed identifier,
// independent of whether a matching record exists.
var ErrInvalidIMEI = errors.New("invalid IMEI format")

const imeiLength = 15

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse id %q", raw)
	}
	return uint(id), nil
}

func (d *Director) GetDevice(id uint) (types.Device, error) {
	var device types.Device
	err := d.db.First(&device, id).Error
	if err != nil {
		return device, errors.Wrapf(err, "GetDevice %v", id)
	}
	return device, nil
}

// GetDeviceByIMEI validates the identifier before touching the store: a
// malformed IMEI is a validation error even when no record would match.
func (d *Director) GetDeviceByIMEI(imei string) (types.Device, error) {
	var device types.Device
	if len(imei) != imeiLength {
		return device, ErrInvalidIMEI
	}

	err := d.db.Where("imei = ?", imei).First(&device).Error
	if err != nil {
		return device, errors.Wrapf(err, "GetDeviceByIMEI %v", imei)
	}
	return device, nil
}

func (d *Director) GetDeviceByToken(token string) (types.Device, error) {
	var device types.Device
	if token == "" {
		return device, errors.New("no device token set")
	}

	err := d.db.Where("api_token = ?", token).First(&device).Error
	if err != nil {
		return device, errors.Wrap(err, "GetDeviceByToken")
	}
	return device, nil
}

// CreateDevice validates and stores a new device record. New devices start
// offline with an empty telemetry slate until their first heartbeat.
func (d *Director) CreateDevice(payload types.DevicePayload) (types.Device, error) {
	var device types.Device
	if payload.Name == "" {
		return device, errors.New("device name is required")
	}
	if !types.ValidDeviceType(payload.DeviceType) {
		return device, errors.Errorf("unsupported device type %q", payload.DeviceType)
	}
	if payload.IMEI == "" && payload.SerialNumber == "" {
		return device, errors.New("either imei or serialNumber must be set")
	}
	if payload.IMEI != "" && len(payload.IMEI) != imeiLength {
		return device, ErrInvalidIMEI
	}

	now := time.Now().UTC()
	device = types.Device{
		Name:         payload.Name,
		IMEI:         payload.IMEI,
		SerialNumber: payload.SerialNumber,
		DeviceType:   payload.DeviceType,
		Status:       types.DeviceStatusOffline,
		BatteryLevel: 0,
		LastSeen:     now,
		Location:     payload.Location,
		PushToken:    payload.PushToken,
		KioskConfig:  payload.KioskConfig,
		EnrolledAt:   now,
	}
	if payload.IsKioskMode != nil {
		device.IsKioskMode = *payload.IsKioskMode
	}

	if err := d.db.Create(&device).Error; err != nil {
		return device, errors.Wrap(err, "create device")
	}
	return device, nil
}

// MarkStaleDevices derives status from lastSeen staleness: online devices
// unseen for ten minutes drop to warning, anything unseen for an hour drops
// to offline. lastSeen itself is never touched here.
func (d *Director) MarkStaleDevices(now time.Time) (warned, offlined int64, err error) {
	warningBefore := now.Add(-10 * time.Minute)
	offlineBefore := now.Add(-1 * time.Hour)

	res := d.db.Model(&types.Device{}).
		Where("status = ? AND last_seen < ?", types.DeviceStatusOnline, warningBefore).
		Update("status", types.DeviceStatusWarning)
	if res.Error != nil {
		return 0, 0, errors.Wrap(res.Error, "MarkStaleDevices: warning pass")
	}
	warned = res.RowsAffected

	res = d.db.Model(&types.Device{}).
		Where("status <> ? AND last_seen < ?", types.DeviceStatusOffline, offlineBefore).
		Update("status", types.DeviceStatusOffline)
	if res.Error != nil {
		return warned, 0, errors.Wrap(res.Error, "MarkStaleDevices: offline pass")
	}
	offlined = res.RowsAffected

	return warned, offlined, nil
}

// ListDevices returns devices matching the filter, oldest enrollment first.
func (d *Director) ListDevices(filter types.DeviceFilter) ([]types.Device, error) {
	query := d.db.Model(&types.Device{}).Order("id")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DeviceType != "" {
		query = query.Where("device_type = ?", filter.DeviceType)
	}

	var devices []types.Device
	if err := query.Find(&devices).Error; err != nil {
		return nil, errors.Wrap(err, "ListDevices")
	}
	return devices, nil
}

// DevicesHandler serves GET /api/devices with an optional urlencoded filter
// (status, device_type).
func (d *Director) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	var filter types.DeviceFilter
	if r.URL.RawQuery != "" {
		err := form.NewDecoder(strings.NewReader(r.URL.RawQuery)).Decode(&filter)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "invalid device filter")
			return
		}
	}

	devices, err := d.ListDevices(filter)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch devices")
		return
	}
	jsonResponse(w, http.StatusOK, devices)
}

// DeviceHandler serves GET /api/devices/{id}.
func (d *Director) DeviceHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch device")
		return
	}
	jsonResponse(w, http.StatusOK, device)
}

// PostDeviceHandler serves POST /api/devices.
func (d *Director) PostDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var payload types.DevicePayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device data")
		return
	}

	device, err := d.CreateDevice(payload)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	InfoLogger(LogHolder{Message: "Device created", DeviceID: fmt.Sprint(device.ID), DeviceName: device.Name})
	jsonResponse(w, http.StatusCreated, device)
}

// PutDeviceHandler serves PUT /api/devices/{id}. Only console-editable
// fields are written; telemetry stays owned by the heartbeat path.
func (d *Director) PutDeviceHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var payload types.DevicePayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device data")
		return
	}

	device, err := d.GetDevice(deviceID)
	if err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update device")
		return
	}

	updates := map[string]interface{}{}
	if payload.Name != "" {
		updates["name"] = payload.Name
	}
	if payload.Location != "" {
		updates["location"] = payload.Location
	}
	if payload.PushToken != "" {
		updates["push_token"] = payload.PushToken
	}
	if payload.IsKioskMode != nil {
		updates["is_kiosk_mode"] = *payload.IsKioskMode
	}
	if payload.KioskConfig != nil {
		updates["kiosk_config"] = payload.KioskConfig
	}

	if len(updates) > 0 {
		err = d.db.Model(&device).Updates(updates).Error
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error()})
			errorResponse(w, http.StatusInternalServerError, "failed to update device")
			return
		}
	}

	device, err = d.GetDevice(deviceID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to update device")
		return
	}
	jsonResponse(w, http.StatusOK, device)
}

// DeleteDeviceHandler serves DELETE /api/devices/{id}. Historical commands
// and audit entries survive the device record.
func (d *Director) DeleteDeviceHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := deviceIDFromRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if _, err := d.GetDevice(deviceID); err != nil {
		if isNotFound(err) {
			errorResponse(w, http.StatusNotFound, "device not found")
			return
		}
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	if err := d.db.Delete(&types.Device{}, deviceID).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Device deleted successfully"})
}
