// Package cli implements auditorctl, the operator tool for the shared
// enforcement store, the policy store and webhook signing.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/OFF-rtk/sentinel-auditor/internal/app"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
)

// StoreOpener opens the shared enforcement store.
type StoreOpener func(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (ports.Store, func() error, error)

type env struct {
	configPath string
	jsonOut    bool
	verbose    bool
	openStore  StoreOpener
	httpClient *http.Client
}

type Option func(*env)

// WithStoreOpener replaces the store selected by configuration.
func WithStoreOpener(o StoreOpener) Option {
	return func(e *env) {
		if o != nil {
			e.openStore = o
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *env) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// NewRootCmd creates the root command.
func NewRootCmd(opts ...Option) *cobra.Command {
	e := &env{
		openStore:  app.OpenStore,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}

	rootCmd := &cobra.Command{
		Use:   "auditorctl",
		Short: "Operate the Sentinel auditor",
		Long: `auditorctl inspects and edits the enforcement state shared with the
upstream detector, seeds the policy store and signs webhook payloads.

It reads the same configuration file and environment as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		newStatusCmd(e),
		newPardonCmd(e),
		newSeedPoliciesCmd(e),
		newTracesCmd(e),
		newSignCmd(e),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig fails only when the file cannot be read. Validation problems are
// server concerns; each command fails on the setting it actually needs.
func (e *env) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, errs := config.Load(e.configPath)
	if cfg == nil {
		return nil, errors.Join(errs...)
	}
	log := e.logger(cmd)
	for _, err := range errs {
		log.Debug("config problem", "error", err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (e *env) logger(cmd *cobra.Command) *slog.Logger {
	if !e.verbose {
		return logger.Discard()
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), "debug", "text")
}

// withStore runs fn against the configured enforcement store.
func (e *env) withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, st ports.Store) error) error {
	cfg, err := e.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	st, closeStore, err := e.openStore(ctx, cfg.Redis, e.logger(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return fn(ctx, cfg, st)
}
