// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ResourceHub/cmd/resourcehub/config"
	"github.com/AleutianAI/ResourceHub/pkg/logging"
	"github.com/AleutianAI/ResourceHub/services/resourcehub"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/auditlog"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/fixtures"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// cli holds state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	cfg        config.File
	logger     *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "resourcehub",
		Short: "Project portfolio and resource allocation API",
		Long: `ResourceHub serves the REST API for projects, resources, resource
requests, milestones and RAID items, with an audit trail and dashboard.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.teardown() },
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("RESOURCEHUB_CONFIG"),
		"path to resourcehub.yaml (default: built-in defaults plus RESOURCEHUB_* env)")

	root.AddCommand(c.serveCmd(), c.migrateCmd(), c.seedCmd(), versionCmd())
	return root
}

// setup loads configuration and installs the global logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	lc := cfg.Logger()
	lc.Output = cmd.ErrOrStderr()
	logger, err := logging.New(lc)
	if err != nil {
		// The logger still writes to the console.
		logger.Slog().Warn("log file disabled", "error", err)
	}
	c.logger = logger
	slog.SetDefault(logger.Slog())
	return nil
}

func (c *cli) teardown() {
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

// =============================================================================
// serve
// =============================================================================

func (c *cli) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.Service()
			if port != 0 {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := resourcehub.New(ctx, cfg, nil)
			if err != nil {
				return err
			}
			return svc.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

// =============================================================================
// migrate
// =============================================================================

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			applied, err := s.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied migrations: %v\n", applied)
			return nil
		},
	}
}

// =============================================================================
// seed
// =============================================================================

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture data into the database",
		Long: `Seed loads projects, resources, milestones, RAID items and resource
requests from a YAML fixture file, or the built-in demo set when --file is not
given. Records that already exist are skipped, so seeding is repeatable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := fixtures.Demo()
			if file != "" {
				var err error
				if f, err = fixtures.LoadFile(file); err != nil {
					return err
				}
			}

			s, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if _, err := s.Migrate(cmd.Context()); err != nil {
				return err
			}

			counts, err := fixtures.Seed(cmd.Context(), s, auditlog.NewStoreLogger(s), f)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Projects:   %d\n", counts.Projects)
			fmt.Fprintf(out, "Resources:  %d\n", counts.Resources)
			fmt.Fprintf(out, "Milestones: %d\n", counts.Milestones)
			fmt.Fprintf(out, "RAID items: %d\n", counts.RAIDItems)
			fmt.Fprintf(out, "Requests:   %d\n", counts.Requests)
			fmt.Fprintf(out, "Skipped:    %d\n", counts.Skipped)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture YAML file (default: built-in demo data)")
	return cmd
}

func (c *cli) openStore(ctx context.Context) (*sqlstore.Store, error) {
	cfg := c.cfg.Service().Database
	slog.Debug("opening database", "driver", cfg.Driver)
	return sqlstore.Open(ctx, cfg)
}

// =============================================================================
// version
// =============================================================================

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "resourcehub %s (commit %s, %s)\n", version, commit, runtime.Version())
		},
	}
}
