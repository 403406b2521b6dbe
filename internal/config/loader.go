package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so secrets can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.AdminKey = expandEnvVars(cfg.Gateway.AdminKey)
	cfg.Gateway.APIKey = expandEnvVars(cfg.Gateway.APIKey)
	cfg.Mail.RefreshToken = expandEnvVars(cfg.Mail.RefreshToken)
	cfg.Mail.ClientID = expandEnvVars(cfg.Mail.ClientID)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Pool.Cooldown429Minutes == 0 {
		cfg.Pool.Cooldown429Minutes = def.Pool.Cooldown429Minutes
	}
	if cfg.Pool.ErrorThreshold == 0 {
		cfg.Pool.ErrorThreshold = def.Pool.ErrorThreshold
	}
	if cfg.Pool.ErrorCooldownSeconds == 0 {
		cfg.Pool.ErrorCooldownSeconds = def.Pool.ErrorCooldownSeconds
	}
	if cfg.Routing.BindingIdleMinutes == 0 {
		cfg.Routing.BindingIdleMinutes = def.Routing.BindingIdleMinutes
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = def.Upstream.TimeoutSeconds
	}
	if cfg.Mail.Tenant == "" {
		cfg.Mail.Tenant = def.Mail.Tenant
	}
	if cfg.Mail.PollIntervalSeconds == 0 {
		cfg.Mail.PollIntervalSeconds = def.Mail.PollIntervalSeconds
	}
	if cfg.Mail.PollTimeoutSeconds == 0 {
		cfg.Mail.PollTimeoutSeconds = def.Mail.PollTimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}

// applyEnvOverrides reads CHATPOOL_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHATPOOL_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("CHATPOOL_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("CHATPOOL_ADMIN_KEY"); v != "" {
		cfg.Gateway.AdminKey = v
	}
	if v := os.Getenv("CHATPOOL_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("CHATPOOL_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CHATPOOL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
