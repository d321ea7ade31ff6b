package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
)

type statusView struct {
	UserID     string `json:"user_id"`
	Banned     bool   `json:"banned"`
	Value      string `json:"value,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
	Strikes    int64  `json:"strikes"`
	Tier       string `json:"tier,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user_id>",
		Short: "Show a user's ban and strike count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(ctx context.Context, _ *config.Config, st ports.Store) error {
				s, err := enforcement.Status(ctx, st, args[0])
				if err != nil {
					return err
				}
				view := toStatusView(s)
				if e.jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(view)
				}
				return printStatus(cmd.OutOrStdout(), view)
			})
		},
	}
}

func toStatusView(s *models.BanStatus) statusView {
	v := statusView{
		UserID:  s.UserID,
		Banned:  s.Banned,
		Value:   s.Value,
		Strikes: s.Strikes,
	}
	if s.TTL > 0 {
		v.TTLSeconds = int64(s.TTL / time.Second)
	}
	if s.Parsed != nil {
		v.Tier = string(s.Parsed.Tier)
		v.Reason = s.Parsed.Reason
	}
	return v
}

func printStatus(w io.Writer, v statusView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "user\t%s\n", v.UserID)
	fmt.Fprintf(tw, "banned\t%t\n", v.Banned)
	if v.Banned {
		fmt.Fprintf(tw, "value\t%s\n", v.Value)
		if v.TTLSeconds > 0 {
			fmt.Fprintf(tw, "expires in\t%s\n", time.Duration(v.TTLSeconds)*time.Second)
		}
		if v.Tier != "" {
			fmt.Fprintf(tw, "tier\t%s\n", v.Tier)
			fmt.Fprintf(tw, "reason\t%s\n", v.Reason)
		}
	}
	fmt.Fprintf(tw, "strikes\t%d\n", v.Strikes)
	return tw.Flush()
}
