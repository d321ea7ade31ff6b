package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/webhook"
)

var errNoSecret = errors.New("no webhook secret: pass --secret or set SUPABASE_WEBHOOK_SECRET")

func newSignCmd(e *env) *cobra.Command {
	var secret, sendURL string
	cmd := &cobra.Command{
		Use:   "sign <payload.json|->",
		Short: "Print the webhook signature for a payload, optionally delivering it",
		Long: `Print the x-supabase-signature value for a payload file ("-" reads stdin).
With --send the payload is POSTed to the given URL with the signature attached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args[0])
			if err != nil {
				return err
			}
			if secret == "" {
				cfg, err := e.loadConfig(cmd)
				if err != nil {
					return err
				}
				secret = cfg.Server.WebhookSecret
			}
			if secret == "" {
				return errNoSecret
			}

			signature := webhook.SignatureValue(payload, secret)
			if sendURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), signature)
				return nil
			}

			req, err := http.NewRequestWithContext(commandContext(cmd), http.MethodPost, sendURL, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(webhook.SignatureHeader, signature)
			resp, err := e.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("deliver payload: %w", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.Status, bytes.TrimSpace(body))
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("delivery rejected: %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret (defaults to the configured one)")
	cmd.Flags().StringVar(&sendURL, "send", "", "URL to POST the signed payload to")
	return cmd
}

func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
