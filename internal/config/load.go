package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into the typed Config struct. The custom UnmarshalJSON
	// methods resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig checks secret hygiene before environment resolution:
// values that must stay out of the config file have to be env references.
func validateRawConfig(rawConfig map[string]any) error {
	provider, ok := rawConfig["provider"].(map[string]any)
	if !ok {
		return nil
	}

	if value, exists := provider["clientSecret"]; exists {
		if _, isString := value.(string); isString {
			return fmt.Errorf("provider.clientSecret must use environment variable reference for security")
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("provider.clientSecret must use {\"$env\": \"VAR_NAME\"} format")
			}
		}
	}

	return nil
}

func applyDefaults(c *Config) {
	if c.Proxy.Name == "" {
		c.Proxy.Name = "auth-front"
	}
	if c.Proxy.Addr == "" {
		c.Proxy.Addr = ":8080"
	}
	if c.Routes.ProfilePath == "" {
		c.Routes.ProfilePath = "/profile"
	}
	if c.Routes.ResetPasswordPath == "" {
		c.Routes.ResetPasswordPath = "/reset-password"
	}
	if c.Routes.LoginPath == "" {
		c.Routes.LoginPath = "/login"
	}
	if c.Intent.Kind == "" {
		c.Intent.Kind = IntentStorageMemory
	}
}
