package eleven

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/core/port"

	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

const (
	DEFAULT_BASE_URL        = "https://portal.elevenenergy.co.uk/api/v1/"
	DEFAULT_REQUEST_TIMEOUT = 10 * time.Second
)

// StatusError is returned when the API answers a GET with a status other than 200.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("eleven api: status %d", e.StatusCode)
}

// Client talks to the Eleven Energy cloud API. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DEFAULT_BASE_URL
	}
	if timeout <= 0 {
		timeout = DEFAULT_REQUEST_TIMEOUT
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) GetSite(ctx context.Context) (domain.SiteListing, error) {
	var site domain.SiteListing
	req, err := c.newGetRequest(ctx, "site")
	if err != nil {
		return site, err
	}
	err = c.doRequest(req, &site)
	return site, err
}

func (c *Client) GetDeviceState(ctx context.Context, deviceId string) (domain.DeviceState, error) {
	var state domain.DeviceState
	req, err := c.newGetRequest(ctx, "devices", deviceId)
	if err != nil {
		return nil, err
	}
	if err := c.doRequest(req, &state); err != nil {
		return nil, err
	}
	return state, nil
}

// PostOperatingMode posts a work mode change once. The answer status is
// returned as is, 0 when the request never got one.
func (c *Client) PostOperatingMode(ctx context.Context, deviceId string, body map[string]any) (int, error) {
	req, err := c.newPostJSONRequest(ctx, body, "devices", deviceId, "operatingMode")
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// CheckToken reports whether the configured token can read the site listing.
func (c *Client) CheckToken(ctx context.Context) (bool, error) {
	_, err := c.GetSite(ctx)
	if err == nil {
		return true, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false, nil
	}
	return false, err
}

func (c *Client) endpoint(elems ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path, err = url.JoinPath(u.Path, elems...)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (c *Client) newGetRequest(ctx context.Context, elems ...string) (*http.Request, error) {
	endpoint, err := c.endpoint(elems...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return req, nil
}

func (c *Client) newPostJSONRequest(ctx context.Context, data any, elems ...string) (*http.Request, error) {
	endpoint, err := c.endpoint(elems...)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "eleven2mqtt/"+versioninfo.Short())
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("eleven: call responded with error status",
			zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode))
		return &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		c.logger.Error("eleven: failed to decode response", zap.String("path", req.URL.Path), zap.Error(err))
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// ensure interface compliance
var _ port.ElevenAPI = (*Client)(nil)
