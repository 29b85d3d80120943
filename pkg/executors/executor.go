package executors

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/splitsync/pkg/filter"
	"github.com/yurifrl/splitsync/pkg/heartbeat"
	"github.com/yurifrl/splitsync/pkg/models"
	"github.com/yurifrl/splitsync/pkg/store"
	"github.com/yurifrl/splitsync/pkg/transform"
)

// Ledger is the part of the Splitwise client the executor needs.
type Ledger interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	ListTransactions(ctx context.Context, groupID *int64, limit int) ([]models.RawTransaction, error)
}

type Options struct {
	// FetchLimit bounds every expense fetch.
	FetchLimit int
	// GroupIDs switches to per-group fetching, in the given order.
	GroupIDs []int64
	// Workers > 1 processes records concurrently.
	Workers int
	// DedupFailOpen inserts records whose dedup lookup failed.
	DedupFailOpen bool
	// SkipHeartbeat never pings the monitor, even on completion.
	SkipHeartbeat bool
}

type Executor struct {
	logger      *log.Logger
	ledger      Ledger
	transformer *transform.Transformer
	policy      *filter.Policy
	gate        store.Gate
	sink        store.Sink
	pinger      heartbeat.Pinger
	opts        Options
}

func New(logger *log.Logger, ledger Ledger, transformer *transform.Transformer, policy *filter.Policy, gate store.Gate, sink store.Sink, pinger heartbeat.Pinger, opts Options) *Executor {
	return &Executor{
		logger:      logger,
		ledger:      ledger,
		transformer: transformer,
		policy:      policy,
		gate:        gate,
		sink:        sink,
		pinger:      pinger,
		opts:        opts,
	}
}
