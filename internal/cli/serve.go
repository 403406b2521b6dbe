package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/gateway"
	"github.com/soyeahso/chatpool/internal/pool"
	"github.com/soyeahso/chatpool/internal/routing"
	"github.com/soyeahso/chatpool/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatpool gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if cfg.Gateway.AdminKey == "" {
				return errors.New("admin key required: set gateway.adminKey or CHATPOOL_ADMIN_KEY")
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			storePath := cfg.Store.Path
			if storePath == "" {
				storePath = paths.Store
			}
			db, err := store.Open(storePath, log)
			if err != nil {
				return fmt.Errorf("opening account store: %w", err)
			}
			defer db.Close()
			accounts := store.NewAccountStore(db)

			list, err := loadAccounts(accounts, cfg)
			if err != nil {
				return err
			}

			p, err := pool.New(list, cfg.Pool.HealthPolicy(), log.Sub("pool"))
			if err != nil {
				return fmt.Errorf("building account pool: %w", err)
			}
			mgr := pool.NewManager(p, log)
			router := routing.NewRouter(cfg.Routing.BindingIdle(), log)

			opts := []gateway.ServerOption{gateway.WithAccountStore(accounts)}
			if cfg.Upstream.BaseURL != "" {
				opts = append(opts, gateway.WithUpstream(gateway.NewHTTPUpstream(cfg.Upstream, log)))
			} else {
				log.Warn().Msg("no upstream configured, chat endpoint will refuse requests")
			}

			srv := gateway.New(cfg, log, mgr, router, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// loadAccounts reads the persisted account list, seeding it from the config
// file on first run.
func loadAccounts(accounts *store.AccountStore, cfg config.Config) ([]domain.AccountConfig, error) {
	list, err := accounts.Load()
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	if len(list) > 0 {
		log.Info().Int("count", len(list)).Msg("accounts loaded from store")
		return list, nil
	}

	if len(cfg.Accounts) == 0 {
		log.Warn().Msg("no accounts configured, upload some via the admin api")
		return nil, nil
	}

	seed := make([]domain.AccountConfig, len(cfg.Accounts))
	copy(seed, cfg.Accounts)
	for i := range seed {
		if seed[i].ID == "" {
			seed[i].ID = fmt.Sprintf("account_%d", i+1)
		}
	}
	if err := accounts.Save(seed); err != nil {
		return nil, fmt.Errorf("seeding account store: %w", err)
	}
	log.Info().Int("count", len(seed)).Msg("account store seeded from config")
	return seed, nil
}
