package main

import (
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yurifrl/splitsync/pkg/classifier"
	"github.com/yurifrl/splitsync/pkg/config"
	"github.com/yurifrl/splitsync/pkg/executors"
	"github.com/yurifrl/splitsync/pkg/filter"
	"github.com/yurifrl/splitsync/pkg/heartbeat"
	"github.com/yurifrl/splitsync/pkg/httputil"
	"github.com/yurifrl/splitsync/pkg/splitwise"
	"github.com/yurifrl/splitsync/pkg/store"
	"github.com/yurifrl/splitsync/pkg/transform"
	"github.com/yurifrl/splitsync/pkg/ynab"
)

type app struct {
	executor *executors.Executor
}

// load builds the configuration (config file + env + flag overrides) and the
// logger for a command.
func load(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "splitsync",
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	}
	return logger
}

func newLedger(cfg *config.Config, logger *log.Logger) *splitwise.Client {
	client := httputil.NewClient(cfg.RequestTimeout, cfg.Splitwise.RequestsPerSecond)
	return splitwise.New(cfg.Splitwise.BaseURL, cfg.Splitwise.APIKey, client, logger)
}

func newStore(cfg *config.Config, client *http.Client, logger *log.Logger) store.Store {
	if cfg.Sink == config.SinkYNAB {
		return ynab.New(cfg.YNAB.Token, cfg.YNAB.BudgetID, cfg.YNAB.AccountID, logger)
	}
	return store.New(cfg.StoreURL(), client, logger)
}

// build wires every component of a run from cfg.
func build(cfg *config.Config, logger *log.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := httputil.NewClient(cfg.RequestTimeout, 0)
	ledger := newLedger(cfg, logger)

	cls := classifier.NewCached(classifier.New(cfg.Classifier.URL, client, logger), cfg.Classifier.CacheTTL)
	transformer := transform.New(cfg.Splitwise.UserID, cls)
	policy := filter.New(filter.DescriptionIs(cfg.Filter.SettlementDescription))

	st := newStore(cfg, client, logger)
	var sink store.Sink = st
	if cfg.ReadOnly {
		sink = store.ReadOnly(st, logger)
	}
	pinger := heartbeat.New(cfg.Heartbeat.URL, client, logger)

	opts := executors.Options{
		FetchLimit:    cfg.FetchLimit,
		GroupIDs:      cfg.Splitwise.GroupIDs,
		Workers:       cfg.Workers,
		DedupFailOpen: cfg.DedupFailOpen,
	}
	logger.Debug("configuration loaded", "sink", cfg.Sink, "read_only", cfg.ReadOnly, "workers", cfg.Workers, "groups", cfg.Splitwise.GroupIDs)

	return &app{
		executor: executors.New(logger, ledger, transformer, policy, st, sink, pinger, opts),
	}, nil
}
