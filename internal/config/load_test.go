package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"version": "v1",
	"proxy": {
		"baseURL": "https://app.example.com",
		"addr": ":8080"
	},
	"provider": {
		"tokenURL": "https://id.example.com/token",
		"userInfoURL": "https://id.example.com/user",
		"clientId": "test-client",
		"clientSecret": {"$env": "TEST_PROVIDER_SECRET"},
		"timeout": "10s"
	},
	"intentStorage": {
		"kind": "memory",
		"ttl": "30m"
	}
}`

func TestLoad(t *testing.T) {
	t.Setenv("TEST_PROVIDER_SECRET", "super-secret")
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", cfg.Proxy.BaseURL)
	assert.Equal(t, Secret("super-secret"), cfg.IDP.ClientSecret)
	assert.Equal(t, 10*time.Second, cfg.IDP.Timeout.Std())
	assert.Equal(t, 30*time.Minute, cfg.Intent.TTL.Std())

	// Defaults
	assert.Equal(t, "/profile", cfg.Routes.ProfilePath)
	assert.Equal(t, "/reset-password", cfg.Routes.ResetPasswordPath)
	assert.Equal(t, "/login", cfg.Routes.LoginPath)
	assert.Equal(t, "auth-front", cfg.Proxy.Name)
}

func TestLoad_InlineSecretRejected(t *testing.T) {
	path := writeConfig(t, `{
		"version": "v1",
		"proxy": {"baseURL": "https://app.example.com"},
		"provider": {
			"tokenURL": "https://id.example.com/token",
			"clientId": "test-client",
			"clientSecret": "plaintext-secret"
		}
	}`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment variable reference")
}

func TestLoad_MissingEnvVar(t *testing.T) {
	path := writeConfig(t, `{
		"version": "v1",
		"proxy": {"baseURL": "https://app.example.com"},
		"provider": {
			"tokenURL": "https://id.example.com/token",
			"clientId": "test-client",
			"clientSecret": {"$env": "DEFINITELY_NOT_SET_12345"}
		}
	}`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_12345")
}

func TestLoad_VersionRequired(t *testing.T) {
	path := writeConfig(t, `{"proxy": {"baseURL": "https://app.example.com"}}`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing baseURL",
			mutate:  func(c *Config) { c.Proxy.BaseURL = "" },
			wantErr: "baseURL",
		},
		{
			name:    "relative baseURL",
			mutate:  func(c *Config) { c.Proxy.BaseURL = "/not-absolute" },
			wantErr: "absolute",
		},
		{
			name:    "missing tokenURL",
			mutate:  func(c *Config) { c.IDP.TokenURL = "" },
			wantErr: "tokenURL",
		},
		{
			name: "file storage without path",
			mutate: func(c *Config) {
				c.Intent.Kind = IntentStorageFile
				c.Intent.SigningKey = "key"
			},
			wantErr: "path",
		},
		{
			name: "firestore storage without project",
			mutate: func(c *Config) {
				c.Intent.Kind = IntentStorageFirestore
			},
			wantErr: "gcpProject",
		},
		{
			name:    "unknown storage kind",
			mutate:  func(c *Config) { c.Intent.Kind = "redis" },
			wantErr: "unknown intentStorage.kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Version: "v1",
				Proxy:   ProxyConfig{BaseURL: "https://app.example.com", Addr: ":8080", Name: "auth-front"},
				Routes:  RoutesConfig{ProfilePath: "/profile", ResetPasswordPath: "/reset-password", LoginPath: "/login"},
				IDP:     IDPConfig{TokenURL: "https://id.example.com/token", ClientID: "c"},
				Intent:  IntentConfig{Kind: IntentStorageMemory},
			}
			tt.mutate(&cfg)

			err := Validate(&cfg)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "***", s.String())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))

	assert.Equal(t, "", Secret("").String())
}
