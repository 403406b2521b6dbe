package config

import "github.com/soyeahso/chatpool/internal/domain"

// Config is the root configuration for chatpool.
type Config struct {
	Gateway  GatewayConfig          `yaml:"gateway,omitempty"`
	Pool     PoolConfig             `yaml:"pool,omitempty"`
	Routing  RoutingConfig          `yaml:"routing,omitempty"`
	Upstream UpstreamConfig         `yaml:"upstream,omitempty"`
	Mail     MailConfig             `yaml:"mail,omitempty"`
	Store    StoreConfig            `yaml:"store,omitempty"`
	Logging  LoggingConfig          `yaml:"logging,omitempty"`
	Accounts []domain.AccountConfig `yaml:"accounts,omitempty"` // seed list when the store is empty
}

// GatewayConfig controls the HTTP server.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	AdminKey       string     `yaml:"adminKey,omitempty"` // shared secret for /external/*
	APIKey         string     `yaml:"apiKey,omitempty"`   // optional secret for the chat endpoint; empty disables the check
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// PoolConfig holds the health-policy knobs. The upstream's real thresholds
// are unpublished, so these stay configurable.
type PoolConfig struct {
	Cooldown429Minutes   int `yaml:"cooldown429Minutes,omitempty"`
	ErrorThreshold       int `yaml:"errorThreshold,omitempty"`
	ErrorCooldownSeconds int `yaml:"errorCooldownSeconds,omitempty"`
}

// RoutingConfig controls conversation affinity.
type RoutingConfig struct {
	BindingIdleMinutes int `yaml:"bindingIdleMinutes,omitempty"`
}

// UpstreamConfig points at the backing chat service.
type UpstreamConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// MailConfig configures the verification-code mailbox used during account
// provisioning. All requests go through an OAuth refresh token; no password
// is ever stored.
type MailConfig struct {
	ClientID            string `yaml:"clientId,omitempty"`
	RefreshToken        string `yaml:"refreshToken,omitempty"`
	Tenant              string `yaml:"tenant,omitempty"`
	Email               string `yaml:"email,omitempty"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds,omitempty"`
	PollTimeoutSeconds  int    `yaml:"pollTimeoutSeconds,omitempty"`
}

// StoreConfig locates the account mirror database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // ":memory:" for tests
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
