package mcsm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// Client talks to an MCSManager-style panel. Every call is a GET against
// <base>/api<endpoint> carrying the apikey query parameter; success is decided
// by the JSON envelope's status field, not the HTTP status.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type envelope struct {
	Status FlexInt         `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Time   FlexInt         `json:"time"`
}

func (c *Client) endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "/api/") {
		return c.baseURL + endpoint
	}
	return c.baseURL + "/api" + endpoint
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint), nil)
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: err}
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Some panel builds front non-200 HTTP responses with HTML error pages.
		return nil, &TransportError{
			Op:  endpoint,
			Err: fmt.Errorf("non-JSON response (HTTP %d): %w", resp.StatusCode, err),
		}
	}

	if env.Status.Int() != http.StatusOK {
		log.Debug().Str("endpoint", endpoint).Int("status", env.Status.Int()).Msg("panel call rejected")
		return nil, &PanelError{Code: env.Status.Int(), Message: env.errorMessage()}
	}
	return &env, nil
}

// errorMessage prefers the explicit error field and falls back to a string
// data payload, which is where some daemon builds put their message.
func (e *envelope) errorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return "unknown error"
}

// Overview fetches the panel overview, including the daemon node list.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	env, err := c.get(ctx, "/overview", nil)
	if err != nil {
		return nil, err
	}
	var ov Overview
	if err := json.Unmarshal(env.Data, &ov); err != nil {
		return nil, &TransportError{Op: "/overview", Err: fmt.Errorf("decode overview: %w", err)}
	}
	ov.TimestampMS = int64(env.Time)
	return &ov, nil
}

// Instances lists one page of a daemon's instances. The panel wraps the list
// in a paging object on recent builds and returns a bare array on older ones;
// both shapes are accepted.
func (c *Client) Instances(ctx context.Context, daemonID string, page, pageSize int) ([]Instance, error) {
	params := url.Values{}
	params.Set("daemonId", daemonID)
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	env, err := c.get(ctx, "/service/remote_service_instances", params)
	if err != nil {
		return nil, err
	}

	var paged struct {
		Data []Instance `json:"data"`
	}
	if err := json.Unmarshal(env.Data, &paged); err == nil && paged.Data != nil {
		return paged.Data, nil
	}

	var bare []Instance
	if err := json.Unmarshal(env.Data, &bare); err != nil {
		return nil, &TransportError{
			Op:  "/service/remote_service_instances",
			Err: fmt.Errorf("decode instance list: %w", err),
		}
	}
	return bare, nil
}

// StartInstance asks the daemon to start an instance.
func (c *Client) StartInstance(ctx context.Context, daemonID, instanceUUID string) error {
	return c.instanceAction(ctx, "/protected_instance/open", daemonID, instanceUUID)
}

// StopInstance asks the daemon to stop an instance.
func (c *Client) StopInstance(ctx context.Context, daemonID, instanceUUID string) error {
	return c.instanceAction(ctx, "/protected_instance/stop", daemonID, instanceUUID)
}

func (c *Client) instanceAction(ctx context.Context, endpoint, daemonID, instanceUUID string) error {
	params := url.Values{}
	params.Set("uuid", instanceUUID)
	params.Set("daemonId", daemonID)
	_, err := c.get(ctx, endpoint, params)
	return err
}

// SendCommand writes a console command to a running instance.
func (c *Client) SendCommand(ctx context.Context, daemonID, instanceUUID, command string) error {
	params := url.Values{}
	params.Set("uuid", instanceUUID)
	params.Set("daemonId", daemonID)
	params.Set("command", command)
	_, err := c.get(ctx, "/protected_instance/command", params)
	return err
}

// OutputLog returns the recent console output of an instance.
func (c *Client) OutputLog(ctx context.Context, daemonID, instanceUUID string) (string, error) {
	params := url.Values{}
	params.Set("uuid", instanceUUID)
	params.Set("daemonId", daemonID)
	env, err := c.get(ctx, "/protected_instance/outputlog", params)
	if err != nil {
		return "", err
	}
	var out string
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", &TransportError{Op: "/protected_instance/outputlog", Err: fmt.Errorf("decode log: %w", err)}
	}
	return out, nil
}
