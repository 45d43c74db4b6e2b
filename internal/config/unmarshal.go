package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// envRef is the {"$env": "VAR_NAME"} reference form accepted wherever a
// string config value may come from the environment.
type envRef struct {
	Env *string `json:"$env"`
}

// resolveString accepts either a JSON string or an env reference and returns
// the resolved value.
func resolveString(data []byte) (string, error) {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}

	var ref envRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.Env == nil {
		return "", fmt.Errorf("expected string or {\"$env\": \"VAR_NAME\"}")
	}

	value, ok := os.LookupEnv(*ref.Env)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", *ref.Env)
	}
	return value, nil
}

// UnmarshalJSON resolves env references immediately at parse time
func (s *Secret) UnmarshalJSON(data []byte) error {
	value, err := resolveString(data)
	if err != nil {
		return err
	}
	*s = Secret(value)
	return nil
}

// UnmarshalJSON parses durations from strings like "30s" or "10m"
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration back as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
