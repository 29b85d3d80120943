// Package store is the client of the budgeting app's expense server: the
// dedup lookup by Splitwise id and the expense insert.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/splitsync/pkg/httputil"
	"github.com/yurifrl/splitsync/pkg/models"
)

var (
	ErrLookupFailed = errors.New("expense lookup failed")
	ErrWriteFailed  = errors.New("expense write failed")
)

// LookupResult is the outcome of a dedup lookup. Callers decide what
// LookupFailed means for them.
type LookupResult int

const (
	NotExists LookupResult = iota
	Exists
	LookupFailed
)

func (r LookupResult) String() string {
	switch r {
	case Exists:
		return "exists"
	case NotExists:
		return "not-exists"
	default:
		return "lookup-failed"
	}
}

// InsertResult carries the id assigned by the destination. Inserted is false
// when the write was suppressed.
type InsertResult struct {
	ID       string
	Inserted bool
}

// Gate answers whether a Splitwise expense was already stored.
type Gate interface {
	Lookup(ctx context.Context, sourceID int64) (LookupResult, error)
}

// Sink stores a new record.
type Sink interface {
	Insert(ctx context.Context, record *models.Record) (InsertResult, error)
}

// Store is a destination supporting both dedup and insert.
type Store interface {
	Gate
	Sink
}

// Client talks to the expense server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

func New(baseURL string, httpClient *http.Client, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

func (c *Client) Lookup(ctx context.Context, sourceID int64) (LookupResult, error) {
	q := url.Values{"splitwiseExpenseId": {strconv.FormatInt(sourceID, 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/checkExpenseExistsBySplitwiseId?"+q.Encode(), nil)
	if err != nil {
		return LookupFailed, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	var resp struct {
		Exists *bool `json:"exists"`
	}
	if err := httputil.Do(c.http, req, &resp); err != nil {
		return LookupFailed, fmt.Errorf("%w: %d: %v", ErrLookupFailed, sourceID, err)
	}
	if resp.Exists == nil {
		return LookupFailed, fmt.Errorf("%w: %d: missing exists field", ErrLookupFailed, sourceID)
	}
	if *resp.Exists {
		return Exists, nil
	}
	return NotExists, nil
}

// entry is the expense server's wire format.
type entry struct {
	Name               string      `json:"name"`
	Amount             json.Number `json:"amount"`
	Date               string      `json:"date"`
	SplitwiseExpenseID int64       `json:"splitwiseExpenseId"`
	TypeID             int64       `json:"typeId"`
	Tags               []string    `json:"tags"`
}

func newEntry(r *models.Record) entry {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return entry{
		Name:               r.Name,
		Amount:             json.Number(r.Amount.StringFixed(2)),
		Date:               r.Date,
		SplitwiseExpenseID: r.SourceID,
		TypeID:             r.CategoryID,
		Tags:               tags,
	}
}

func (c *Client) Insert(ctx context.Context, record *models.Record) (InsertResult, error) {
	body, err := json.Marshal(newEntry(record))
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: encode: %v", ErrWriteFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/expenseEntry", bytes.NewReader(body))
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		CreateRes2 struct {
			ID json.RawMessage `json:"id"`
		} `json:"createRes2"`
	}
	if err := httputil.Do(c.http, req, &resp); err != nil {
		return InsertResult{}, fmt.Errorf("%w: %d: %v", ErrWriteFailed, record.SourceID, err)
	}
	id := strings.Trim(string(resp.CreateRes2.ID), `"`)
	if id == "" || id == "null" {
		return InsertResult{}, fmt.Errorf("%w: %d: response has no id", ErrWriteFailed, record.SourceID)
	}
	c.logger.Debug("inserted expense", "source_id", record.SourceID, "id", id)
	return InsertResult{ID: id, Inserted: true}, nil
}

type readOnly struct {
	next   Sink
	logger *log.Logger
}

// ReadOnly wraps next so that Insert never reaches it. Wrapping twice is a
// no-op.
func ReadOnly(next Sink, logger *log.Logger) Sink {
	if IsReadOnly(next) {
		return next
	}
	return &readOnly{next: next, logger: logger}
}

// IsReadOnly reports whether s suppresses writes.
func IsReadOnly(s Sink) bool {
	_, ok := s.(*readOnly)
	return ok
}

func (r *readOnly) Insert(ctx context.Context, record *models.Record) (InsertResult, error) {
	r.logger.Info("read-only: skipping insert", "source_id", record.SourceID, "name", record.Name, "amount", record.Amount.StringFixed(2))
	return InsertResult{}, nil
}
