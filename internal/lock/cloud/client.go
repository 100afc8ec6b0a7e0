// Package cloud is the HTTP client for the vendor lock service.
// It implements lock.API and adds device listing for discovery.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

const (
	defaultBaseURL = "https://api.tedee.com/api/v1.32"
	defaultTimeout = 15 * time.Second

	// maxBodyBytes caps response bodies read into memory.
	maxBodyBytes = 1 << 20
)

// ErrNoCredentials is returned by New when neither a personal key nor an
// OAuth2 refresh token is configured.
var ErrNoCredentials = errors.New("cloud: no credentials configured")

// APIError is a non-success response from the lock service.
type APIError struct {
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("cloud: api error %d", e.Status)
	}
	return fmt.Sprintf("cloud: api error %d: %s", e.Status, strings.Join(e.Messages, "; "))
}

// Unwrap lets callers match every API error against lock.ErrResponse.
func (e *APIError) Unwrap() error { return lock.ErrResponse }

// OAuthConfig holds OAuth2 client credentials and a refresh token.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RefreshToken string
	Scopes       []string
}

// Config configures a Client.
type Config struct {
	// BaseURL of the API. Default: the public vendor endpoint.
	BaseURL string

	// Timeout per request. Default: 15 seconds.
	Timeout time.Duration

	// PersonalKey authenticates with a personal access key. Takes
	// precedence over OAuth.
	PersonalKey string

	// OAuth authenticates with a refreshable bearer token.
	OAuth *OAuthConfig
}

// Client talks to the vendor lock REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ lock.API = (*Client)(nil)

// New builds a Client with the configured authentication.
//
// ctx scopes OAuth2 token refreshes and should live as long as the client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var httpClient *http.Client
	switch {
	case cfg.PersonalKey != "":
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: &personalKeyTransport{key: cfg.PersonalKey, base: http.DefaultTransport},
		}
	case cfg.OAuth != nil && cfg.OAuth.RefreshToken != "":
		oc := &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuth.AuthURL,
				TokenURL: cfg.OAuth.TokenURL,
			},
			Scopes: cfg.OAuth.Scopes,
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
		source := oauth2.ReuseTokenSource(nil, oc.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.OAuth.RefreshToken}))
		httpClient = oauth2.NewClient(tokenCtx, source)
		httpClient.Timeout = timeout
	default:
		return nil, ErrNoCredentials
	}

	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// NewWithHTTPClient builds a Client around an already authenticated
// http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type personalKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *personalKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "PersonalKey "+t.key)
	return t.base.RoundTrip(r)
}

// SubmitCommand issues close, open or pull-spring and returns the
// operation id.
func (c *Client) SubmitCommand(ctx context.Context, deviceID string, op lock.OperationType, mode lock.UnlockMode) (string, error) {
	id, err := parseDeviceID(deviceID)
	if err != nil {
		return "", err
	}

	var path string
	payload := commandRequest{DeviceID: id}
	switch op {
	case lock.OperationClose:
		path = "/my/lock/close"
	case lock.OperationOpen:
		path = "/my/lock/open"
		if !mode.Valid() {
			return "", fmt.Errorf("cloud: invalid unlock mode %d", mode)
		}
		if mode != lock.UnlockDefault {
			m := int(mode)
			payload.OpenParameter = &m
		}
	case lock.OperationPull:
		path = "/my/lock/pull-spring"
	default:
		return "", fmt.Errorf("cloud: unsupported operation %q", op)
	}

	var res commandResult
	if err := c.do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return "", err
	}
	if res.OperationID == "" {
		return "", fmt.Errorf("%w: %s returned no operation id", lock.ErrResponse, path)
	}
	return res.OperationID, nil
}

// GetOperation returns the current operation record.
func (c *Client) GetOperation(ctx context.Context, operationID string) (lock.Operation, error) {
	var res operationResult
	if err := c.do(ctx, http.MethodGet, "/my/device/operation/"+operationID, nil, &res); err != nil {
		return lock.Operation{}, err
	}
	if res.Status == "" {
		return lock.Operation{}, fmt.Errorf("%w: operation %s has no status", lock.ErrResponse, operationID)
	}
	return res.toOperation(operationID), nil
}

// GetState returns the lock state from the sync endpoint.
func (c *Client) GetState(ctx context.Context, deviceID string) (lock.State, error) {
	var res syncResult
	if err := c.do(ctx, http.MethodGet, "/my/lock/"+deviceID+"/sync", nil, &res); err != nil {
		return lock.StateUnknown, err
	}
	props, err := res.LockProperties.toProperties()
	if err != nil {
		return lock.StateUnknown, err
	}
	return props.State, nil
}

// GetDetails returns the full report for one lock, including settings.
func (c *Client) GetDetails(ctx context.Context, deviceID string) (lock.Details, error) {
	var res lockResult
	if err := c.do(ctx, http.MethodGet, "/my/lock/"+deviceID, nil, &res); err != nil {
		return lock.Details{}, err
	}
	return res.toDetails()
}

// ListLocks returns every lock on the account. Locks whose report cannot
// be parsed are skipped and returned in the second value.
func (c *Client) ListLocks(ctx context.Context) ([]lock.Details, []error) {
	var res []lockResult
	if err := c.do(ctx, http.MethodGet, "/my/lock", nil, &res); err != nil {
		return nil, []error{err}
	}

	locks := make([]lock.Details, 0, len(res))
	var errs []error
	for _, r := range res {
		d, err := r.toDetails()
		if err != nil {
			errs = append(errs, fmt.Errorf("lock %d: %w", r.ID, err))
			continue
		}
		locks = append(locks, d)
	}
	return locks, errs
}

// do sends a request and decodes the envelope result into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("cloud: encoding %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("cloud: building %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	endpoint := endpointLabel(path)
	if err != nil {
		observe(endpoint, "transport", start)
		return fmt.Errorf("%w: %s %s: %w", lock.ErrResponse, method, path, err)
	}
	defer resp.Body.Close()
	observe(endpoint, fmt.Sprint(resp.StatusCode), start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", lock.ErrResponse, path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Messages: []string{strings.TrimSpace(string(data))}}
		}
		return fmt.Errorf("%w: decoding %s: %v", lock.ErrResponse, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		status := env.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		return &APIError{Status: status, Messages: env.ErrorMessages}
	}

	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%w: %s returned no result", lock.ErrResponse, path)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decoding %s result: %v", lock.ErrResponse, path, err)
	}
	return nil
}
