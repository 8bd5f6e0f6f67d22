// Package agent is the on-device half of the command lifecycle: it enrolls
// against the server, heartbeats telemetry on an interval, polls for pending
// commands, executes them, and reports each result.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortressmdm/fortressmdm/types"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Agent drives the device side of the protocol. Create with New, call Enroll
// once, then Run.
type Agent struct {
	client    *resty.Client
	serverURL string
	token     string
	deviceID  uint
	state     *deviceState
}

func New(serverURL string) *Agent {
	return &Agent{
		client:    resty.New().SetTimeout(15 * time.Second),
		serverURL: serverURL,
		state:     newDeviceState(),
	}
}

// Enroll trades the shared enrollment code for this device's bearer token.
func (a *Agent) Enroll(code string, info types.DeviceInfo) error {
	payload := types.EnrollPayload{
		EnrollmentCode: code,
		DeviceInfo:     info,
	}

	var result types.EnrollResponse
	resp, err := a.client.R().
		SetBody(payload).
		SetResult(&result).
		Post(a.serverURL + "/api/enroll")
	if err != nil {
		return errors.Wrap(err, "enroll request")
	}
	if resp.StatusCode() != http.StatusOK || !result.Success {
		return errors.Errorf("enrollment rejected: %s", resp.Status())
	}

	a.token = result.Token
	a.deviceID = result.DeviceID
	a.state.applyInfo(info)

	log.WithFields(log.Fields{
		"deviceId":      result.DeviceID,
		"serverVersion": result.ServerVersion,
	}).Info("enrolled")
	return nil
}

// Run heartbeats and polls until the context is cancelled. The first tick
// fires immediately.
func (a *Agent) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.RunTick()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunTick performs one heartbeat cycle: push status, poll for pending
// commands, execute each and report its result. A failed status push abandons
// the tick; the pending commands are still there next time.
func (a *Agent) RunTick() {
	if err := a.sendStatus(); err != nil {
		log.WithError(err).Warn("status push failed, skipping tick")
		return
	}

	commands, err := a.pollCommands()
	if err != nil {
		log.WithError(err).Warn("command poll failed")
		return
	}

	for _, command := range commands {
		response, execErr := a.state.execute(command.Command)

		errMsg := ""
		if execErr != nil {
			errMsg = execErr.Error()
		}
		if err := a.reportResult(command.ID, execErr == nil, errMsg, response); err != nil {
			// leave the command pending server-side; it will be retried
			log.WithError(err).WithField("commandId", command.ID).Warn("result report failed")
			continue
		}

		entry := log.WithFields(log.Fields{
			"commandId": command.ID,
			"command":   command.Command,
		})
		if execErr != nil {
			entry.WithError(execErr).Warn("command failed")
		} else {
			entry.Info("command completed")
		}
	}
}

func (a *Agent) sendStatus() error {
	payload := a.state.statusPayload()

	resp, err := a.client.R().
		SetAuthToken(a.token).
		SetBody(payload).
		Post(a.serverURL + "/api/device/status")
	if err != nil {
		return errors.Wrap(err, "status request")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("status rejected: %s", resp.Status())
	}
	return nil
}

func (a *Agent) pollCommands() ([]types.DeviceCommand, error) {
	var commands []types.DeviceCommand
	resp, err := a.client.R().
		SetAuthToken(a.token).
		SetResult(&commands).
		Get(a.serverURL + "/api/device/commands")
	if err != nil {
		return nil, errors.Wrap(err, "poll request")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Errorf("poll rejected: %s", resp.Status())
	}
	return commands, nil
}

func (a *Agent) reportResult(commandID uint, success bool, errMsg string, response types.JSONMap) error {
	payload := types.ResultPayload{
		Success:  success,
		Error:    errMsg,
		Response: response,
	}

	url := fmt.Sprintf("%s/api/device/command/%d/result", a.serverURL, commandID)
	resp, err := a.client.R().
		SetAuthToken(a.token).
		SetBody(payload).
		Post(url)
	if err != nil {
		return errors.Wrap(err, "result request")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("result rejected: %s", resp.Status())
	}
	return nil
}
