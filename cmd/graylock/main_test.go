package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/config"
)

// writeConfig writes content to a temp config file and points
// GRAYLOCK_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graylock.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOCK_CONFIG", path)
	t.Setenv("GRAYLOCK_JWT_SECRET", "")
	t.Setenv("GRAYLOCK_LOCKS_PERSONAL_KEY", "")
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOCK_CONFIG", "/nonexistent/path/graylock.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingJWTSecret verifies validation stops startup before any
// connection is attempted.
func TestRun_MissingJWTSecret(t *testing.T) {
	writeConfig(t, `
site:
  id: test-site

database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"

locks:
  auth:
    mode: personal_key
    personal_key: "pk-test"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("error = %v, want jwt secret validation failure", err)
	}
}

// TestRun_MissingLockCredentials verifies the lock service credentials are
// required.
func TestRun_MissingLockCredentials(t *testing.T) {
	writeConfig(t, `
site:
  id: test-site

security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"

locks:
  auth:
    mode: personal_key
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without lock credentials")
	}
	if !strings.Contains(err.Error(), "personal_key") {
		t.Errorf("error = %v, want personal key validation failure", err)
	}
}

// TestRun_MQTTUnavailable verifies run fails when the broker is unreachable.
// Requires nothing listening on 127.0.0.1:19999.
func TestRun_MQTTUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}
	writeConfig(t, `
site:
  id: test-site

database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "graylock-test"

security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"

locks:
  auth:
    mode: personal_key
    personal_key: "pk-test"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when MQTT is unreachable")
	}
	t.Logf("run() returned error (expected): %v", err)
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLOCK_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/graylock.yaml"
	t.Setenv("GRAYLOCK_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestCloudConfig(t *testing.T) {
	tests := []struct {
		name       string
		locks      config.LocksConfig
		wantKey    string
		wantOAuth  bool
		wantTokURL string
	}{
		{
			name: "personal key",
			locks: config.LocksConfig{
				Auth: config.LockAuthConfig{Mode: config.AuthModePersonalKey, PersonalKey: "pk"},
			},
			wantKey: "pk",
		},
		{
			name: "oauth2",
			locks: config.LocksConfig{
				Auth: config.LockAuthConfig{
					Mode:        config.AuthModeOAuth2,
					PersonalKey: "ignored",
					OAuth2: config.OAuth2Config{
						ClientID:     "client",
						TokenURL:     "https://auth.example/token",
						RefreshToken: "refresh",
					},
				},
			},
			wantOAuth:  true,
			wantTokURL: "https://auth.example/token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.locks.BaseURL = "https://locks.example"
			tt.locks.RequestTimeout = 3 * time.Second

			got := cloudConfig(tt.locks)
			if got.BaseURL != "https://locks.example" || got.Timeout != 3*time.Second {
				t.Errorf("BaseURL/Timeout = %q/%v", got.BaseURL, got.Timeout)
			}
			if got.PersonalKey != tt.wantKey {
				t.Errorf("PersonalKey = %q, want %q", got.PersonalKey, tt.wantKey)
			}
			if (got.OAuth != nil) != tt.wantOAuth {
				t.Fatalf("OAuth set = %v, want %v", got.OAuth != nil, tt.wantOAuth)
			}
			if tt.wantOAuth && got.OAuth.TokenURL != tt.wantTokURL {
				t.Errorf("TokenURL = %q, want %q", got.OAuth.TokenURL, tt.wantTokURL)
			}
		})
	}
}
