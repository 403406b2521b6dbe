package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/mail"
	"github.com/spf13/cobra"
)

func newMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Mailbox helpers for account provisioning",
	}
	cmd.AddCommand(newMailFetchCodeCmd())
	return cmd
}

func newMailFetchCodeCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "fetch-code",
		Short: "Fetch the latest verification code from the configured mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Mail.Email == "" {
				return errors.New("mail is not configured: set mail.email, mail.clientId and mail.refreshToken")
			}

			client := mail.NewClient(cfg.Mail, log)
			ctx := cmd.Context()

			var code string
			if wait {
				code, err = client.PollForCode(ctx, time.Time{})
			} else {
				code, err = client.FetchCode(ctx, time.Time{})
			}
			if err != nil {
				if errors.Is(err, mail.ErrNoCode) {
					return errors.New("no verification code found, try --wait")
				}
				return err
			}

			fmt.Println(code)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "poll until a code arrives or the poll budget runs out")

	return cmd
}
