package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/app"
	"github.com/OFF-rtk/sentinel-auditor/internal/policystore"
)

// defaultEmbeddingDims matches all-MiniLM-L6-v2.
const defaultEmbeddingDims = 384

var errNoDatabase = errors.New("DATABASE_URL is not configured")

func newSeedPoliciesCmd(e *env) *cobra.Command {
	var dims int
	cmd := &cobra.Command{
		Use:   "seed-policies <file.yaml>",
		Short: "Embed policy documents and upsert them into the policy store",
		Long: `Embed every document in a policy file and upsert it by policy_id into the
pgvector table. The table and the vector extension are created when missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := policystore.LoadDocuments(args[0])
			if err != nil {
				return err
			}
			cfg, err := e.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errNoDatabase
			}

			ctx := commandContext(cmd)
			ps, closePool, err := app.OpenPostgresPolicyStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			if err := ps.Migrate(ctx, dims); err != nil {
				return err
			}
			n, err := ps.Seed(ctx, docs)
			if err != nil {
				return err
			}
			if e.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"seeded": n,
					"table":  cfg.Database.PolicyTable,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d policies into %s\n", n, cfg.Database.PolicyTable)
			return nil
		},
	}
	cmd.Flags().IntVar(&dims, "dims", defaultEmbeddingDims, "embedding dimensions of the vector column")
	return cmd
}
