package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "pulsewatch"

// Env holds deployment overrides read from PULSEWATCH_* variables.
type Env struct {
	HostURL        string `envconfig:"HOST_URL"`
	WebhookURL     string `envconfig:"WEBHOOK_URL"`
	StateDir       string `envconfig:"STATE_DIR"`
	StateBucketURL string `envconfig:"STATE_BUCKET_URL"`
	SentryDSN      string `envconfig:"SENTRY_DSN"`
	Port           *int   `envconfig:"PORT"`
}

// ApplyEnv overlays PULSEWATCH_* environment variables onto cfg.
//
// Only variables that are set take effect; the webhook URL becomes the global
// default and never replaces site or endpoint overrides.
func ApplyEnv(cfg *Config) error {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.HostURL != "" {
		cfg.Host = env.HostURL
	}
	if env.WebhookURL != "" {
		if err := validateURL(env.WebhookURL); err != nil {
			return fmt.Errorf("PULSEWATCH_WEBHOOK_URL: %w", err)
		}
		cfg.WebhookURL = Ptr(env.WebhookURL)
	}
	if env.StateDir != "" {
		cfg.State.Dir = env.StateDir
	}
	if env.StateBucketURL != "" {
		cfg.State.BucketURL = env.StateBucketURL
	}
	if env.SentryDSN != "" {
		cfg.Sentry.DSN = env.SentryDSN
	}
	if env.Port != nil {
		if *env.Port < 0 || *env.Port > 65535 {
			return fmt.Errorf("PULSEWATCH_PORT must be between 0 and 65535, got %d", *env.Port)
		}
		cfg.Server.Port = *env.Port
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
