package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/splitsync/pkg/config"
	"github.com/yurifrl/splitsync/pkg/executors"
	"github.com/yurifrl/splitsync/pkg/models"
	"github.com/yurifrl/splitsync/pkg/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "splitsync",
	Short:         "Copy your share of Splitwise expenses into a budgeting store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := load(cmd)
		if err != nil {
			return err
		}
		app, err := build(cfg, logger)
		if err != nil {
			return err
		}

		report, err := app.executor.Run(cmd.Context())
		if err != nil {
			return err
		}
		if perr := report.Err(); perr != nil {
			logger.Warn("some expenses failed", "failed", report.Counts.Failed, "error", perr)
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview what a sync would insert (dry-run)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := load(cmd)
		if err != nil {
			return err
		}
		app, err := build(cfg, logger)
		if err != nil {
			return err
		}

		report, err := app.executor.Plan(cmd.Context())
		if err != nil {
			return err
		}
		executors.RenderPlan(cmd.OutOrStdout(), report)

		csvPath, _ := cmd.Flags().GetString("csv")
		if csvPath == "" {
			return nil
		}
		onlyNew, _ := cmd.Flags().GetBool("only-new")
		f, err := os.Create(csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := executors.WriteCSV(f, report, onlyNew); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Info("wrote plan csv", "file", csvPath)
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List Splitwise groups and the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := load(cmd)
		if err != nil {
			return err
		}
		if cfg.Splitwise.APIKey == "" {
			return fmt.Errorf("splitwise api key is required (SPLITWISE_API_KEY)")
		}
		ledger := newLedger(cfg, logger)

		user, err := ledger.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		groups, err := ledger.ListGroups(cmd.Context())
		if err != nil {
			return err
		}
		if cfg.Debug {
			pp.Fprintln(os.Stderr, groups)
		}

		out := struct {
			User   models.User    `json:"user" yaml:"user"`
			Groups []models.Group `json:"groups" yaml:"groups"`
		}{user, groups}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		case "yaml":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(out)
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", format)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run status and sync on a schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := load(cmd)
		if err != nil {
			return err
		}
		app, err := build(cfg, logger)
		if err != nil {
			return err
		}

		srv := server.New(app.executor, cfg.Serve.Interval, logger)
		logger.Info("starting server", "addr", cfg.Serve.Addr, "interval", cfg.Serve.Interval)
		return srv.Start(cmd.Context(), cfg.Serve.Addr)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is splitsync.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug logging")
	rootCmd.PersistentFlags().Bool("read-only", false, "Never write to the store")
	rootCmd.PersistentFlags().Int("limit", 100, "Maximum expenses fetched per request")
	rootCmd.PersistentFlags().Int("workers", 1, "Expenses processed concurrently")
	rootCmd.PersistentFlags().StringSlice("group", nil, "Fetch only these group ids (repeatable)")
	rootCmd.PersistentFlags().String("sink", config.SinkExpenseServer, "Where records are written (expense-server or ynab)")
	rootCmd.PersistentFlags().String("heartbeat", "", "Liveness URL pinged after a completed run")
	rootCmd.PersistentFlags().String("classifier", "", "Classifier base URL")

	planCmd.Flags().String("csv", "", "Also write the plan as CSV to this file")
	planCmd.Flags().Bool("only-new", false, "Only write expenses that would be added to the CSV")

	groupsCmd.Flags().StringP("format", "f", "yaml", "Output format (yaml or json)")

	serveCmd.Flags().String("addr", "0.0.0.0:3000", "Listen address")
	serveCmd.Flags().Duration("interval", config.DefaultServeInterval, "Time between scheduled runs (0 disables)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
