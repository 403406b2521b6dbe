package cli

import (
	"fmt"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show chatpool configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("chatpool %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Store:   %s\n", paths.Store)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway: port=%d bind=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled)
			if cfg.Gateway.AdminKey == "" {
				fmt.Println("Admin:   key not configured")
			} else {
				fmt.Println("Admin:   key configured")
			}
			fmt.Printf("Pool:    cooldown429=%dm errorThreshold=%d errorCooldown=%ds\n",
				cfg.Pool.Cooldown429Minutes, cfg.Pool.ErrorThreshold, cfg.Pool.ErrorCooldownSeconds)
			fmt.Printf("Routing: bindingIdle=%dm\n", cfg.Routing.BindingIdleMinutes)

			if cfg.Upstream.BaseURL != "" {
				fmt.Printf("Upstream: %s (timeout %ds)\n", cfg.Upstream.BaseURL, cfg.Upstream.TimeoutSeconds)
			} else {
				fmt.Println("Upstream: (not configured)")
			}

			if cfg.Mail.Email != "" {
				fmt.Printf("Mail:    %s (tenant %s)\n", cfg.Mail.Email, cfg.Mail.Tenant)
			} else {
				fmt.Println("Mail:    (not configured)")
			}

			fmt.Printf("Seed accounts in config: %d\n", len(cfg.Accounts))

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
