package config

import (
	"fmt"
	"net/url"
)

// Validate checks a parsed config for consistency
func Validate(c *Config) error {
	if c.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.baseURL is required")
	}
	u, err := url.Parse(c.Proxy.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("proxy.baseURL must be an absolute URL")
	}

	if c.IDP.TokenURL == "" {
		return fmt.Errorf("provider.tokenURL is required")
	}
	if c.IDP.ClientID == "" {
		return fmt.Errorf("provider.clientId is required")
	}

	switch c.Intent.Kind {
	case IntentStorageMemory:
	case IntentStorageFile:
		if c.Intent.Path == "" {
			return fmt.Errorf("intentStorage.path is required for file storage")
		}
		if c.Intent.SigningKey == "" {
			return fmt.Errorf("intentStorage.signingKey is required for file storage")
		}
	case IntentStorageFirestore:
		if c.Intent.GCPProject == "" {
			return fmt.Errorf("intentStorage.gcpProject is required for firestore storage")
		}
	default:
		return fmt.Errorf("unknown intentStorage.kind: %s", c.Intent.Kind)
	}

	if c.Ops != nil && c.Ops.LogLevelTokenHash == "" {
		return fmt.Errorf("ops.logLevelTokenHash is required when ops is configured")
	}

	return nil
}
