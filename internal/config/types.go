package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Duration wraps time.Duration with JSON string parsing ("30s", "10m")
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

// IntentStorageKind selects the intent flag store backend
type IntentStorageKind string

const (
	IntentStorageMemory    IntentStorageKind = "memory"
	IntentStorageFile      IntentStorageKind = "file"
	IntentStorageFirestore IntentStorageKind = "firestore"
)

// Config is the full auth-front configuration
type Config struct {
	Version string        `json:"version"`
	Proxy   ProxyConfig   `json:"proxy"`
	Routes  RoutesConfig  `json:"routes"`
	Intent  IntentConfig  `json:"intentStorage"`
	IDP     IDPConfig     `json:"provider"`
	Ops     *OpsConfig    `json:"ops,omitempty"`
}

// ProxyConfig configures the HTTP front
type ProxyConfig struct {
	BaseURL string `json:"baseURL"`
	Addr    string `json:"addr"`
	Name    string `json:"name"`
}

// RoutesConfig sets the terminal redirect targets
type RoutesConfig struct {
	ProfilePath       string `json:"profilePath,omitempty"`
	ResetPasswordPath string `json:"resetPasswordPath,omitempty"`
	LoginPath         string `json:"loginPath,omitempty"`
}

// IDPConfig configures the identity provider collaborator
type IDPConfig struct {
	TokenURL     string   `json:"tokenURL"`
	UserInfoURL  string   `json:"userInfoURL,omitempty"`
	ClientID     string   `json:"clientId"`
	ClientSecret Secret   `json:"clientSecret"`
	Timeout      Duration `json:"timeout,omitempty"`
}

// IntentConfig configures where intent flags are persisted
type IntentConfig struct {
	Kind       IntentStorageKind `json:"kind,omitempty"`
	TTL        Duration          `json:"ttl,omitempty"`
	SigningKey Secret            `json:"signingKey,omitempty"`

	// File storage
	Path string `json:"path,omitempty"`

	// Firestore storage
	GCPProject string `json:"gcpProject,omitempty"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// OpsConfig guards the runtime operations endpoints
type OpsConfig struct {
	// LogLevelTokenHash is a bcrypt hash of the token required by the
	// runtime log-level endpoint.
	LogLevelTokenHash Secret `json:"logLevelTokenHash"`
}
