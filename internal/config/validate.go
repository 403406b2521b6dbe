package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.TLS.Enabled {
		if cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls",
				Message: "certPath and keyPath are required when TLS is enabled",
			})
		}
	}

	if cfg.Pool.Cooldown429Minutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "pool.cooldown429Minutes",
			Message: "must not be negative",
		})
	}
	if cfg.Pool.ErrorThreshold < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "pool.errorThreshold",
			Message: "must not be negative",
		})
	}
	if cfg.Routing.BindingIdleMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "routing.bindingIdleMinutes",
			Message: "must not be negative",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	// Mail is optional, but a partial configuration is an operator mistake.
	mailSet := cfg.Mail.ClientID != "" || cfg.Mail.RefreshToken != "" || cfg.Mail.Email != ""
	if mailSet {
		if cfg.Mail.ClientID == "" {
			issues = append(issues, ValidationIssue{Path: "mail.clientId", Message: "required when mail is configured"})
		}
		if cfg.Mail.RefreshToken == "" {
			issues = append(issues, ValidationIssue{Path: "mail.refreshToken", Message: "required when mail is configured"})
		}
		if cfg.Mail.Email == "" {
			issues = append(issues, ValidationIssue{Path: "mail.email", Message: "required when mail is configured"})
		}
	}

	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acc := range cfg.Accounts {
		if err := acc.Validate(); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("accounts[%d]", i),
				Message: err.Error(),
			})
		}
		if acc.ID != "" && seen[acc.ID] {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("accounts[%d]", i),
				Message: fmt.Sprintf("duplicate account id %q", acc.ID),
			})
		}
		seen[acc.ID] = true
	}

	return issues
}
