package push

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fortressmdm/fortressmdm/utils"
	"github.com/pkg/errors"
)

// Client talks to an FCM-style push gateway. It only ever sends a data-only
// "sync" message telling the device to heartbeat immediately; command
// delivery itself always happens over the polling channel.
type Client struct {
	gatewayURL string
	apiKey     string
	client     *utils.HTTPClient
}

// NewClient builds a gateway client with the retrying HTTP transport.
func NewClient(gatewayURL, apiKey string) *Client {
	return &Client{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		apiKey:     apiKey,
		client:     utils.NewHTTPClient(30*time.Second, nil),
	}
}

type wakeMessage struct {
	To   string            `json:"to"`
	Data map[string]string `json:"data"`
}

type gatewayResponse struct {
	Success int    `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Wake asks the gateway to ping the device holding pushToken. Best effort:
// callers treat a failure as "the device will pick the command up on its
// next heartbeat".
func (c *Client) Wake(pushToken string, commandID uint64) error {
	msg := wakeMessage{
		To: pushToken,
		Data: map[string]string{
			"type":      "sync",
			"commandId": strconv.FormatUint(commandID, 10),
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Wake: marshal message")
	}

	req, err := http.NewRequest(http.MethodPost, c.gatewayURL+"/send", bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrap(err, "Wake: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Wake")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "Wake: read response")
	}

	var result gatewayResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return errors.Wrap(err, "Wake: decode response")
	}

	if resp.StatusCode != http.StatusOK || result.Error != "" {
		return errors.Errorf("push gateway returned status %d: %s", resp.StatusCode, result.Error)
	}

	return nil
}
