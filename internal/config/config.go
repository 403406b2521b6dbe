// Package config loads and validates the chatpool YAML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/soyeahso/chatpool/internal/domain"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Pool: PoolConfig{
			Cooldown429Minutes:   5,
			ErrorThreshold:       3,
			ErrorCooldownSeconds: 120,
		},
		Routing: RoutingConfig{
			BindingIdleMinutes: 30,
		},
		Upstream: UpstreamConfig{
			TimeoutSeconds: 300,
		},
		Mail: MailConfig{
			Tenant:              "consumers",
			PollIntervalSeconds: 4,
			PollTimeoutSeconds:  120,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

// HealthPolicy converts the pool knobs into a domain policy.
func (c PoolConfig) HealthPolicy() domain.HealthPolicy {
	p := domain.DefaultHealthPolicy()
	if c.Cooldown429Minutes > 0 {
		p.Cooldown429 = time.Duration(c.Cooldown429Minutes) * time.Minute
	}
	if c.ErrorThreshold > 0 {
		p.ErrorThreshold = c.ErrorThreshold
	}
	if c.ErrorCooldownSeconds > 0 {
		p.ErrorCooldown = time.Duration(c.ErrorCooldownSeconds) * time.Second
	}
	return p
}

// BindingIdle converts the routing knob into a duration.
func (c RoutingConfig) BindingIdle() time.Duration {
	if c.BindingIdleMinutes <= 0 {
		return 0
	}
	return time.Duration(c.BindingIdleMinutes) * time.Minute
}
