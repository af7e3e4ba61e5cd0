package balena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRemoteConfig wraps any failure talking to the balena API. Callers
// decide the fallback policy; this package never retries.
var ErrRemoteConfig = errors.New("balena: remote config request failed")

// ConfigVariable is a named configuration entry scoped to a device or
// an application (fleet). ID is zero until the variable exists remotely.
type ConfigVariable struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Config carries the API endpoint and the balena-injected credential.
// Accessing the API key from a container requires the
// io.balena.features.balena-api label.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	base  string
	key   string
	httpc *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		return nil, fmt.Errorf("balena: api url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("balena: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:  base,
		key:   cfg.APIKey,
		httpc: &http.Client{Timeout: timeout},
	}, nil
}

// ListDeviceVariables returns the device-scoped config variables in the
// order the API reports them.
func (c *Client) ListDeviceVariables(ctx context.Context, deviceUUID string) ([]ConfigVariable, error) {
	filter := fmt.Sprintf("device/uuid eq '%s'", deviceUUID)
	return c.list(ctx, "/v6/device_config_variable", filter)
}

// ListApplicationVariables returns the fleet-scoped config variables.
func (c *Client) ListApplicationVariables(ctx context.Context, appID string) ([]ConfigVariable, error) {
	filter := fmt.Sprintf("application eq %s", appID)
	return c.list(ctx, "/v6/application_config_variable", filter)
}

// CreateDeviceVariable creates a new device-scoped config variable.
func (c *Client) CreateDeviceVariable(ctx context.Context, deviceUUID, name, value string) error {
	body := map[string]string{
		"device": deviceUUID,
		"name":   name,
		"value":  value,
	}
	return c.write(ctx, http.MethodPost, "/v6/device_config_variable", body)
}

// UpdateDeviceVariable sets the value of an existing device-scoped
// config variable by id.
func (c *Client) UpdateDeviceVariable(ctx context.Context, id int64, value string) error {
	path := fmt.Sprintf("/v6/device_config_variable(%d)", id)
	return c.write(ctx, http.MethodPatch, path, map[string]string{"value": value})
}

func (c *Client) list(ctx context.Context, path, filter string) ([]ConfigVariable, error) {
	q := url.Values{}
	q.Set("$filter", filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteConfig, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// OData envelope: {"d": [...]}
	var envelope struct {
		D []ConfigVariable `json:"d"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrRemoteConfig, path, err)
	}
	return envelope.D, nil
}

func (c *Client) write(ctx context.Context, method, path string, body map[string]string) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrRemoteConfig, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRemoteConfig, req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := readSnippet(resp.Body, 512)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrRemoteConfig, req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	return resp, nil
}

func readSnippet(r io.Reader, max int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, max))
	return strings.TrimSpace(string(b))
}
