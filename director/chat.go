package director

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
)

const chatIssuer = "chat_assistant"

var imeiPattern = regexp.MustCompile(`\d{15}`)

// ChatHandler serves POST /api/chat: a keyword-driven console assistant that
// answers fleet questions and can queue commands when the operator names a
// device by IMEI. Both the message and the generated response are persisted.
func (d *Director) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var payload types.ChatPayload
	if err := decodeJSON(r, &payload); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid chat payload")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	response, err := d.answerChat(payload.Message)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	message := types.ChatMessage{
		UserID:    payload.UserID,
		Message:   payload.Message,
		Response:  response,
		Timestamp: time.Now().UTC(),
	}
	if err := d.db.Create(&message).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	jsonResponse(w, http.StatusOK, message)
}

// ChatHistoryHandler serves GET /api/chat.
func (d *Director) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var messages []types.ChatMessage
	if err := d.db.Order("id").Find(&messages).Error; err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		errorResponse(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	jsonResponse(w, http.StatusOK, messages)
}

func (d *Director) answerChat(message string) (string, error) {
	response := "I'm here to help with enterprise device management. "
	lower := strings.ToLower(message)

	contains := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(lower, sub) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("kiosk") && contains("enable", "activate"):
		devices, err := d.ListDevices(types.DeviceFilter{})
		if err != nil {
			return "", err
		}
		ready := 0
		for _, device := range devices {
			if !device.IsKioskMode {
				ready++
			}
		}
		response += fmt.Sprintf("Found %d devices ready for kiosk mode. Use the kiosk endpoint to push a configuration and enable single-app mode.", ready)

	case contains("wifi") && contains("enable", "disable", "control"):
		reply, err := d.chatControl(lower, "wifi", "WiFi")
		if err != nil {
			return "", err
		}
		response += reply

	case contains("mobile data", "cellular"):
		reply, err := d.chatControl(lower, "mobile_data", "mobile data")
		if err != nil {
			return "", err
		}
		response += reply

	case contains("gps") && contains("enable", "disable", "activate", "location"):
		reply, err := d.chatControl(lower, "gps", "GPS")
		if err != nil {
			return "", err
		}
		response += reply

	case contains("bulk") && contains("control", "apply"):
		devices, err := d.ListDevices(types.DeviceFilter{})
		if err != nil {
			return "", err
		}
		response += fmt.Sprintf("Bulk controls are available for %d devices. Use the bulk control endpoint to toggle WiFi, mobile data, GPS, and Bluetooth across the fleet in one call.", len(devices))

	case contains("offline"):
		devices, err := d.ListDevices(types.DeviceFilter{Status: types.DeviceStatusOffline})
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(devices))
		for _, device := range devices {
			names = append(names, device.Name)
		}
		response += fmt.Sprintf("Found %d offline devices: %s", len(devices), strings.Join(names, ", "))

	case contains("lock") && contains("imei"):
		imei := imeiPattern.FindString(lower)
		if imei == "" {
			response += "Please provide a valid IMEI number (15 digits)."
			break
		}
		device, err := d.GetDeviceByIMEI(imei)
		if err != nil {
			if isNotFound(err) {
				response += fmt.Sprintf("No device found with IMEI %s.", imei)
				break
			}
			return "", err
		}
		command, err := d.CreateCommand(device, "lock", chatIssuer)
		if err != nil {
			return "", err
		}
		response += fmt.Sprintf("Locking device %s (IMEI: %s). Command #%d queued.", device.Name, imei, command.ID)

	case contains("status", "devices"):
		stats, err := d.GetDashboardStats()
		if err != nil {
			return "", err
		}
		response += fmt.Sprintf("Device Status: %d online, %d offline, %d warning, %d in kiosk mode",
			stats.OnlineDevices, stats.OfflineDevices, stats.WarningDevices, stats.KioskDevices)

	case contains("help", "commands"):
		response += "Available commands: 'show device status', 'offline devices', " +
			"'enable wifi on <imei>', 'disable mobile data on <imei>', 'activate gps on <imei>', " +
			"'lock device with imei <imei>', 'enable kiosk mode', 'bulk controls'."

	default:
		response += "Ask me about device status, offline devices, or tell me to lock a device by IMEI. Say 'help' for the full list."
	}

	return response, nil
}

// chatControl queues a single control command when the message carries an
// IMEI, else explains how to phrase the request.
func (d *Director) chatControl(lower, action, label string) (string, error) {
	imei := imeiPattern.FindString(lower)
	if imei == "" {
		return fmt.Sprintf("To control %s, specify a device IMEI: 'enable %s on device 123456789012345'.", label, action), nil
	}

	device, err := d.GetDeviceByIMEI(imei)
	if err != nil {
		if isNotFound(err) {
			return fmt.Sprintf("No device found with IMEI %s.", imei), nil
		}
		return "", err
	}

	enabled := !strings.Contains(lower, "disable")
	command, err := d.QueueControl(device, action, enabled, chatIssuer)
	if err != nil {
		return "", err
	}

	verb := "Enabling"
	if !enabled {
		verb = "Disabling"
	}
	return fmt.Sprintf("%s %s on device %s (IMEI: %s). Command #%d queued.", verb, label, device.Name, imei, command.ID), nil
}
