package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/postgres"
	"github.com/OFF-rtk/sentinel-auditor/internal/trace"
)

func newTracesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "traces <event_id>",
		Short: "List the recorded stage transitions of one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errNoDatabase
			}

			ctx := commandContext(cmd)
			db, err := postgres.OpenDB(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			sink, err := trace.NewPostgresSink(db, cfg.Database.TraceTable)
			if err != nil {
				return err
			}
			records, err := sink.ListByEvent(ctx, args[0])
			if err != nil {
				return err
			}
			if e.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTAGE\tSTATUS\tDETAIL")
			for _, r := range records {
				detail, _ := json.Marshal(r.Detail)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.At.Format(time.RFC3339), r.Stage, r.Status, detail)
			}
			return tw.Flush()
		},
	}
}
