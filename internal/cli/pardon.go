package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/app"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
)

func newPardonCmd(e *env) *cobra.Command {
	var email, reason string
	cmd := &cobra.Command{
		Use:   "pardon <user_id>",
		Short: "Lift a user's ban without touching strikes",
		Long: `Lift a user's ban. Strikes are kept so a later confirmed block still
escalates. With --email a pardon notice is sent when SMTP is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := e.logger(cmd)
			return e.withStore(cmd, func(ctx context.Context, cfg *config.Config, st ports.Store) error {
				svc, err := enforcement.New(st,
					enforcement.WithLogger(log),
					enforcement.WithNotifier(app.NewNotifier(cfg.SMTP, log)),
				)
				if err != nil {
					return err
				}
				out, err := svc.Pardon(ctx, args[0], email, reason)
				if err != nil {
					return err
				}
				if e.jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"user_id":  out.UserID,
						"key":      out.Key,
						"existed":  out.Existed,
						"notified": out.Notified,
					})
				}
				if out.Existed {
					fmt.Fprintf(cmd.OutOrStdout(), "pardoned %s (%s removed)\n", out.UserID, out.Key)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s had no active ban\n", out.UserID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "address to send the pardon notice to")
	cmd.Flags().StringVar(&reason, "reason", "", "reason included in the notice")
	return cmd
}
