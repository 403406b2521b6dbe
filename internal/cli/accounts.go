package cli

import (
	"fmt"
	"time"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/store"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect the account pool",
	}
	cmd.AddCommand(newAccountsListCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their health classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			list, err := readAccountList(cfg)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no accounts configured")
				return nil
			}

			policy := cfg.Pool.HealthPolicy()
			now := time.Now()

			fmt.Printf("%-16s %-10s %-20s %s\n", "ID", "STATE", "EXPIRES (UTC+8)", "SESSION")
			for _, acc := range list {
				rec := domain.NewAccountRecord(acc)
				h := rec.Classify(now, policy)
				state := h.State.String()
				if h.Reason != "" {
					state += " (" + h.Reason + ")"
				}
				expires := acc.ExpiresAt
				if expires == "" {
					expires = "-"
				}
				fmt.Printf("%-16s %-10s %-20s %s\n", acc.ID, state, expires, acc.RedactedSession())
			}
			return nil
		},
	}
}

// readAccountList prefers the persistent store and falls back to the
// config seed list.
func readAccountList(cfg config.Config) ([]domain.AccountConfig, error) {
	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = paths.Store
	}

	db, err := store.Open(storePath, log)
	if err != nil {
		return cfg.Accounts, nil
	}
	defer db.Close()

	list, err := store.NewAccountStore(db).Load()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return cfg.Accounts, nil
	}
	return list, nil
}
