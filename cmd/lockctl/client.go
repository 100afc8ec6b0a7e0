package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

var errNoToken = errors.New("no API token: set --token or GRAYLOCK_API_TOKEN")

// apiError mirrors the error body returned by the bridge API.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (%d %s, %s)", e.Message, e.Status, e.Code, e.Key)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// lockView is one lock as returned by the list and get endpoints.
type lockView struct {
	lock.DeviceStatus
	ReasonMessage string `json:"reason_message,omitempty"`
}

type lockList struct {
	Locks []lockView `json:"locks"`
	Count int        `json:"count"`
}

type commandResult struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
	Status   string `json:"status"`
}

// client is a minimal bridge API client.
type client struct {
	base     string
	token    string
	language string
	http     *http.Client
}

func newClient(opts *options) (*client, error) {
	if opts.token == "" {
		return nil, errNoToken
	}
	return &client{
		base:     strings.TrimRight(opts.server, "/") + "/api/v1",
		token:    opts.token,
		language: opts.language,
		http:     &http.Client{Timeout: opts.timeout},
	}, nil
}

func (c *client) listLocks(ctx context.Context) (*lockList, error) {
	var out lockList
	if err := c.do(ctx, http.MethodGet, "/locks", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) getLock(ctx context.Context, id string) (*lockView, error) {
	var out lockView
	if err := c.do(ctx, http.MethodGet, "/locks/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) command(ctx context.Context, id, command string) (*commandResult, error) {
	var out commandResult
	if err := c.do(ctx, http.MethodPost, "/locks/"+id+"/"+command, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr = &apiError{Status: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(body))}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
