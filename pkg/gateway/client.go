// Package gateway wraps the dashboard backend's REST contract: auth
// header injection, the refresh-retry-once policy and uniform error
// mapping.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// TokenSource supplies unexpired access tokens and forces a refresh when
// the backend rejects one anyway.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// envelope is the uniform response shape. Anything that is neither
// `{data}` nor `{error:{message}}` is a server error.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the backend. The embedded cookie jar carries the
// HTTP-only refresh cookie between calls.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  zerolog.Logger
}

// New creates a gateway client for the given base URL.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: log.With().Str("component", "gateway").Logger(),
	}, nil
}

// SetTokenSource wires the refresher in after construction; the
// refresher itself needs the client for the refresh round-trip.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// Login exchanges credentials for a session. The refresh cookie lands in
// the jar; the access token and profile come back in the envelope.
func (c *Client) Login(ctx context.Context, username, password string) (models.Credential, error) {
	var cred models.Credential

	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, routeLogin, body, &cred); err != nil {
		return models.Credential{}, err
	}

	return cred, nil
}

// Logout invalidates the backend session. Best-effort: local teardown
// proceeds regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, routeLogout, nil, nil)
}

// Refresh trades the refresh cookie for a new access token and profile.
func (c *Client) Refresh(ctx context.Context) (models.Credential, error) {
	var cred models.Credential

	if err := c.call(ctx, routeRefresh, nil, &cred); err != nil {
		return models.Credential{}, err
	}

	return cred, nil
}

// FetchUser loads the current profile for a resumed session.
func (c *Client) FetchUser(ctx context.Context) (*models.UserProfile, error) {
	var user models.UserProfile

	if err := c.call(ctx, routeUser, nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateSettings pushes new user settings and returns the updated
// profile.
func (c *Client) UpdateSettings(ctx context.Context, settings models.UserSettings) (*models.UserProfile, error) {
	var user models.UserProfile

	if err := c.call(ctx, routeSettings, settings, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateDeviceConfig pushes a configuration block to one device.
func (c *Client) UpdateDeviceConfig(ctx context.Context, deviceID string, conf models.DeviceConfigUpdate) error {
	body := struct {
		ID string `json:"id"`
		models.DeviceConfigUpdate
	}{ID: deviceID, DeviceConfigUpdate: conf}

	return c.call(ctx, routeUpdateConf, body, nil)
}

// UpdateDeviceOTA sets a device's firmware target version.
func (c *Client) UpdateDeviceOTA(ctx context.Context, deviceID, version string) error {
	body := map[string]string{"id": deviceID, "version": version}

	return c.call(ctx, routeUpdateOTA, body, nil)
}

// ListOTAVersions returns the firmware versions available for push.
func (c *Client) ListOTAVersions(ctx context.Context) ([]string, error) {
	var versions []string

	if err := c.get(ctx, routeOTAList, nil, &versions); err != nil {
		return nil, err
	}

	return versions, nil
}

// HideDevice toggles a device's soft-delete flag.
func (c *Client) HideDevice(ctx context.Context, deviceID string, hidden bool) error {
	body := struct {
		ID     string `json:"id"`
		Hidden bool   `json:"hidden"`
	}{ID: deviceID, Hidden: hidden}

	return c.call(ctx, routeHideDevice, body, nil)
}

// FetchHistory loads a device's operation log on demand.
func (c *Client) FetchHistory(ctx context.Context, deviceID string) ([]models.HistoryEntry, error) {
	var history []models.HistoryEntry

	if err := c.get(ctx, routeHistory, url.Values{"id": {deviceID}}, &history); err != nil {
		return nil, err
	}

	return history, nil
}

// FetchDetections loads a device's sensor trace on demand.
func (c *Client) FetchDetections(ctx context.Context, deviceID string) ([]models.Detection, error) {
	var detections []models.Detection

	if err := c.get(ctx, routeDetections, url.Values{"id": {deviceID}}, &detections); err != nil {
		return nil, err
	}

	return detections, nil
}

// RegisterSubscription (re-)registers a push subscription so the backend
// can target notification delivery.
func (c *Client) RegisterSubscription(ctx context.Context, sub models.PushSubscription) error {
	return c.call(ctx, routeSubscription, sub, nil)
}

// call performs a mutation route with a JSON body. The body is kept as
// bytes so the refresh-retry can replay it.
func (c *Client) call(ctx context.Context, rt route, body, out any) error {
	var payload []byte

	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	raw, err := c.roundTrip(ctx, rt, nil, payload, false)
	if err != nil {
		return err
	}

	return decodeEnvelope(raw, out)
}

// get performs a read route with query-string arguments.
func (c *Client) get(ctx context.Context, rt route, query url.Values, out any) error {
	raw, err := c.roundTrip(ctx, rt, query, nil, false)
	if err != nil {
		return err
	}

	return decodeEnvelope(raw, out)
}

// roundTrip executes one request. On a 401 for an authenticated route it
// forces a refresh and retries exactly once.
func (c *Client) roundTrip(ctx context.Context, rt route, query url.Values, body []byte, retried bool) ([]byte, error) {
	req, err := c.newRequest(ctx, rt, query, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", models.ErrConnection, rt.method, rt.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %s", models.ErrConnection, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && rt.auth {
		if retried {
			return nil, fmt.Errorf("%w: %s rejected after refresh", models.ErrUnauthorized, rt.path)
		}

		c.logger.Debug().Str("path", rt.path).Msg("Got 401, refreshing token and retrying once")

		if _, err := c.tokens.Refresh(ctx); err != nil {
			return nil, err
		}

		return c.roundTrip(ctx, rt, query, body, true)
	}

	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, rt route, query url.Values, body []byte) (*http.Request, error) {
	u := *c.baseURL
	u.Path = rt.path

	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, rt.method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rt.path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if rt.auth {
		token, err := c.tokens.GetValidToken(ctx)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// decodeEnvelope enforces the `{data}` / `{error:{message}}` contract.
func decodeEnvelope(raw []byte, out any) error {
	var env envelope

	if err := json.Unmarshal(raw, &env); err != nil {
		return models.ServerErrorf("unexpected response shape")
	}

	if env.Error != nil {
		if env.Error.Message == "" {
			return models.ServerErrorf("unexpected response shape")
		}

		return models.ServerErrorf("%s", env.Error.Message)
	}

	if env.Data == nil {
		return models.ServerErrorf("unexpected response shape")
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return models.ServerErrorf("malformed data payload")
	}

	return nil
}
