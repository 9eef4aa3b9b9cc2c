package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harveywai/expirywatch/pkg/actions"
	"github.com/harveywai/expirywatch/pkg/auth"
	"github.com/harveywai/expirywatch/pkg/config"
	"github.com/harveywai/expirywatch/pkg/database"
	"github.com/harveywai/expirywatch/pkg/runner"
	"github.com/harveywai/expirywatch/pkg/server"
)

// version is set at build time using -ldflags.
var version = "dev"

type globalFlags struct {
	configFile string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Same shape as a failed action step: one error annotation, exit 1.
		actions.NewLogger(os.Stdout, false).Errorf("%s", err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "expirywatch",
		Short:         "Files a GitHub issue for domains whose certificate or registration is about to expire",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "optional YAML config file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "print debug annotations")

	root.AddCommand(runEntry(flags))
	root.AddCommand(scanEntry(flags))
	root.AddCommand(serveEntry(flags))
	root.AddCommand(tokenEntry(flags))
	root.AddCommand(historyEntry(flags))

	return root
}

func loadConfig(flags *globalFlags) (*config.Config, *actions.Logger, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile, WorkDir: wd})
	if err != nil {
		return nil, nil, err
	}
	return cfg, actions.NewLogger(os.Stdout, flags.debug || cfg.Debug), nil
}

func runEntry(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check domains and create or update the tracking issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), flags)
		},
	}
}

func runOnce(ctx context.Context, flags *globalFlags) error {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	r, err := runner.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	summary, runErr := r.Run(ctx)

	// Outputs set before a failure are still useful to later steps.
	if err := r.Outputs.Flush(cfg.OutputPath, os.Stdout); err != nil {
		log.Warningf("%v", err)
	}
	if runErr != nil {
		return runErr
	}

	log.Infof("%s", summary)
	return nil
}

func serveEntry(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an authenticated HTTP endpoint that triggers runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return auth.ErrMissingSecret
			}

			r, err := runner.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer r.Close()

			srv := &server.Server{
				Run: func(ctx context.Context) (*runner.Summary, error) {
					// Each trigger gets fresh outputs; they are not written anywhere.
					r.Outputs = &actions.Outputs{}
					return r.Run(ctx)
				},
				History:    r.History,
				Secret:     cfg.JWTSecret,
				Repository: cfg.Repository(),
				Log:        log,
			}

			log.Infof("listening on %s", addr)
			return srv.Router().Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func tokenEntry(flags *globalFlags) *cobra.Command {
	var (
		subject    string
		repository string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the serve endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, subject, repository, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "scheduler", "token subject")
	cmd.Flags().StringVar(&repository, "repository", "", "restrict the token to owner/repo")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}

func historyEntry(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("history_db is not configured")
			}

			store, err := database.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			repository := ""
			if cfg.Owner != "" {
				repository = cfg.Repository()
			}
			runs, err := store.RecentRuns(cmd.Context(), repository, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}
