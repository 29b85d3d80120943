package executors

import (
	"time"

	"go.uber.org/multierr"

	"github.com/yurifrl/splitsync/pkg/filter"
	"github.com/yurifrl/splitsync/pkg/models"
)

// State is the position of a run in its lifecycle.
type State string

const (
	StateInit           State = "init"
	StateFetch          State = "fetch"
	StatePerRecord      State = "per-record"
	StateCompleted      State = "completed"
	StateAbortedAtInit  State = "aborted-at-init"
	StateAbortedAtFetch State = "aborted-at-fetch"
)

// Status is the outcome of one upstream expense.
type Status string

const (
	Inserted    Status = "inserted"
	WouldInsert Status = "would-insert"
	Exists      Status = "exists"
	Filtered    Status = "filtered"
	Failed      Status = "failed"
)

// Entry records what happened to one upstream expense.
type Entry struct {
	SourceID    int64          `json:"source_id"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Reason      filter.Reason  `json:"reason,omitempty"`
	InsertedID  string         `json:"inserted_id,omitempty"`
	Record      *models.Record `json:"record,omitempty"`
	Error       string         `json:"error,omitempty"`
	Err         error          `json:"-"`
}

// The accessors below let entries be exported with pkg/csv.

func (e Entry) Date() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.Date
}

func (e Entry) Payee() string { return e.Description }

func (e Entry) Memo() string {
	memo := string(e.Status)
	if e.Reason != filter.Keep {
		memo += ":" + string(e.Reason)
	}
	return memo
}

func (e Entry) Amount() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.Amount.StringFixed(2)
}

// Report is the result of one run. Entries keep upstream order.
type Report struct {
	RunID         string    `json:"run_id"`
	State         State     `json:"state"`
	ReadOnly      bool      `json:"read_only"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Groups        int       `json:"groups"`
	Entries       []Entry   `json:"entries"`
	HeartbeatSent bool      `json:"heartbeat_sent"`
	Counts        Counts    `json:"counts"`
	Error         string    `json:"error,omitempty"`
}

type Counts struct {
	Total       int `json:"total"`
	Inserted    int `json:"inserted"`
	WouldInsert int `json:"would_insert"`
	Exists      int `json:"exists"`
	Filtered    int `json:"filtered"`
	Failed      int `json:"failed"`
}

func (r *Report) count() {
	c := Counts{Total: len(r.Entries)}
	for _, e := range r.Entries {
		switch e.Status {
		case Inserted:
			c.Inserted++
		case WouldInsert:
			c.WouldInsert++
		case Exists:
			c.Exists++
		case Filtered:
			c.Filtered++
		case Failed:
			c.Failed++
		}
	}
	r.Counts = c
}

// Err combines the errors of every failed entry.
func (r *Report) Err() error {
	var err error
	for _, e := range r.Entries {
		if e.Err != nil {
			err = multierr.Append(err, e.Err)
		}
	}
	return err
}
