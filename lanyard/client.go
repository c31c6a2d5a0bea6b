// Package lanyard talks to the Lanyard presence service: a one-shot REST
// snapshot fetch and a websocket push channel with server-driven heartbeats.
package lanyard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ceskypane/statuscard/logging"
	"github.com/ceskypane/statuscard/presence"
	transporthttp "github.com/ceskypane/statuscard/transport/http"
)

const (
	DefaultBaseURL   = "https://api.lanyard.rest"
	DefaultSocketURL = "wss://api.lanyard.rest/socket"
)

type HTTPClient interface {
	Get(ctx context.Context, url string) (transporthttp.Response, error)
}

type Config struct {
	BaseURL string
	Logger  logging.Logger
}

type Client struct {
	http HTTPClient
	cfg  Config
	log  logging.Logger
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(httpClient HTTPClient, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		http: httpClient,
		cfg:  cfg,
		log:  logging.With(cfg.Logger),
	}
}

// Presence fetches the current snapshot for userID.
// Endpoint: GET /v1/users/{userId}
func (c *Client) Presence(ctx context.Context, userID string) (presence.Snapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return presence.Snapshot{}, ErrMissingUserID
	}

	endpoint := c.cfg.BaseURL + "/v1/users/" + url.PathEscape(userID)
	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return presence.Snapshot{}, fmt.Errorf("lanyard: fetch presence: %w", err)
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		if !resp.OK() {
			return presence.Snapshot{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}
		}

		return presence.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if !env.Success || !resp.OK() {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}

		return presence.Snapshot{}, apiErr
	}

	var snap presence.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return presence.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if err := snap.Validate(); err != nil {
		return presence.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	c.log.Debug("lanyard presence fetched",
		logging.F("user_id", userID),
		logging.F("status", string(snap.Status)),
	)

	return snap, nil
}
