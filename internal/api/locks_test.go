package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

func TestListLocks(t *testing.T) {
	locks := newFakeLocks(
		lock.DeviceStatus{ID: "1", Name: "Front", Available: true},
		lock.DeviceStatus{ID: "2", Name: "Back", ReasonKey: lock.KeyUnknownState},
	)
	srv := testServer(t, locks)

	headers := authed(t)
	headers["Accept-Language"] = "de-AT,de;q=0.9,en;q=0.5"
	w := doRequest(t, srv, http.MethodGet, "/api/v1/locks", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Locks []lockView `json:"locks"`
		Count int        `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Locks[0].ID != "1" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Locks[0].ReasonMessage != "" {
		t.Errorf("available lock has reason %q", resp.Locks[0].ReasonMessage)
	}
	if got := resp.Locks[1].ReasonMessage; got != "de-AT:"+lock.KeyUnknownState {
		t.Errorf("reason message = %q", got)
	}
}

func TestGetLock(t *testing.T) {
	srv := testServer(t, newFakeLocks(lock.DeviceStatus{ID: "1", PullSpringEnabled: true}))

	w := doRequest(t, srv, http.MethodGet, "/api/v1/locks/1", authed(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var v lockView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.ID != "1" || !v.PullSpringEnabled {
		t.Errorf("lock = %+v", v)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/locks/nope", authed(t))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown lock status = %d, want 404", w.Code)
	}
}

func TestLockCommands(t *testing.T) {
	tests := []struct {
		path     string
		wantCall string
	}{
		{"/api/v1/locks/1/lock", "1/locked=true"},
		{"/api/v1/locks/1/unlock", "1/locked=false"},
		{"/api/v1/locks/1/open", "1/open=true"},
		{"/api/v1/locks/1/sync", "1/sync"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			locks := newFakeLocks(lock.DeviceStatus{ID: "1"})
			srv := testServer(t, locks)

			w := doRequest(t, srv, http.MethodPost, tt.path, authed(t))
			if w.Code != http.StatusAccepted {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if got := locks.Calls(); !reflect.DeepEqual(got, []string{tt.wantCall}) {
				t.Errorf("calls = %v, want %v", got, tt.wantCall)
			}
			var resp commandResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.DeviceID != "1" || resp.Status != "accepted" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestLockCommands_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantKey    string
	}{
		{"in use", lock.ErrInUse, http.StatusConflict, ErrCodeConflict, lock.KeyInUse},
		{"not ready", lock.ErrNotReadyToLock, http.StatusConflict, ErrCodeConflict, lock.KeyNotReadyToLock},
		{"not available", lock.ErrNotAvailable, http.StatusServiceUnavailable, ErrCodeUnavailable, lock.KeyNotAvailable},
		{"remote failure", fmt.Errorf("submitting lock: %w", lock.ErrResponse), http.StatusBadGateway, ErrCodeUpstream, lock.KeyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locks := newFakeLocks(lock.DeviceStatus{ID: "1"})
			locks.errs["1/locked=true"] = tt.err
			srv := testServer(t, locks)

			headers := authed(t)
			headers["Accept-Language"] = "nl"
			w := doRequest(t, srv, http.MethodPost, "/api/v1/locks/1/lock", headers)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var e Error
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
				t.Fatal(err)
			}
			if e.Code != tt.wantCode || e.Key != tt.wantKey || e.Message != "nl:"+tt.wantKey {
				t.Errorf("error = %+v", e)
			}
		})
	}
}

func TestLockCommand_UnknownDevice(t *testing.T) {
	srv := testServer(t, newFakeLocks())

	w := doRequest(t, srv, http.MethodPost, "/api/v1/locks/99/open", authed(t))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Key != lock.KeyNotAvailable || e.Message != "en:"+lock.KeyNotAvailable {
		t.Errorf("error = %+v", e)
	}
}

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"*", "en"},
		{"de", "de"},
		{"nl-BE;q=0.8, en", "nl-BE"},
		{" fr-CH , fr;q=0.9", "fr-CH"},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		if got := requestLanguage(req, "en"); got != tt.want {
			t.Errorf("requestLanguage(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
