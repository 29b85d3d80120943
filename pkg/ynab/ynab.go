// Package ynab stores canonical records in a YNAB budget account. The Splitwise
// id travels in the first CSV field of the memo so later runs can find it.
package ynab

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/splitsync/pkg/models"
	"github.com/yurifrl/splitsync/pkg/store"
)

const customIDPrefix = "sw-"

// indexTTL bounds how long the memo index is trusted before it is reloaded.
const indexTTL = 5 * time.Minute

type (
	listFunc   func(budgetID, accountID string, f *transaction.Filter) ([]*transaction.Transaction, error)
	createFunc func(budgetID string, payloads []transaction.PayloadTransaction) error
)

// Sink implements store.Store against one YNAB account.
type Sink struct {
	budgetID  string
	accountID string
	list      listFunc
	create    createFunc
	logger    *log.Logger

	mu       sync.Mutex
	index    map[string]bool
	loadedAt time.Time
	now      func() time.Time
}

var _ store.Store = (*Sink)(nil)

func New(token, budgetID, accountID string, logger *log.Logger) *Sink {
	svc := ynab.NewClient(token).Transaction()
	return newSink(budgetID, accountID, svc.GetTransactionsByAccount, func(budgetID string, payloads []transaction.PayloadTransaction) error {
		_, err := svc.CreateTransactions(budgetID, payloads)
		return err
	}, logger)
}

func newSink(budgetID, accountID string, list listFunc, create createFunc, logger *log.Logger) *Sink {
	return &Sink{
		budgetID:  budgetID,
		accountID: accountID,
		list:      list,
		create:    create,
		logger:    logger,
		now:       time.Now,
	}
}

// CustomID returns the memo key of a Splitwise expense.
func CustomID(sourceID int64) string {
	return customIDPrefix + strconv.FormatInt(sourceID, 10)
}

func extractCustomID(tx *transaction.Transaction) string {
	if tx == nil || tx.Memo == nil {
		return ""
	}
	memo := strings.Trim(*tx.Memo, "\"")
	if idx := strings.Index(memo, ","); idx > 0 {
		memo = memo[:idx]
	}
	if !strings.HasPrefix(memo, customIDPrefix) {
		return ""
	}
	return memo
}

func (s *Sink) Lookup(ctx context.Context, sourceID int64) (store.LookupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil || s.now().Sub(s.loadedAt) > indexTTL {
		if err := s.load(); err != nil {
			return store.LookupFailed, fmt.Errorf("%w: %v", store.ErrLookupFailed, err)
		}
	}
	if s.index[CustomID(sourceID)] {
		return store.Exists, nil
	}
	return store.NotExists, nil
}

func (s *Sink) load() error {
	txs, err := s.list(s.budgetID, s.accountID, nil)
	if err != nil {
		return err
	}
	index := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.Deleted {
			continue
		}
		if id := extractCustomID(tx); id != "" {
			index[id] = true
		}
	}
	s.index = index
	s.loadedAt = s.now()
	s.logger.Debug("loaded ynab index", "account_id", s.accountID, "transactions", len(txs), "tracked", len(index))
	return nil
}

func (s *Sink) Insert(ctx context.Context, record *models.Record) (store.InsertResult, error) {
	payload, err := Payload(s.accountID, record)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("%w: %d: %v", store.ErrWriteFailed, record.SourceID, err)
	}
	if err := s.create(s.budgetID, []transaction.PayloadTransaction{payload}); err != nil {
		return store.InsertResult{}, fmt.Errorf("%w: %d: %v", store.ErrWriteFailed, record.SourceID, err)
	}

	id := CustomID(record.SourceID)
	s.mu.Lock()
	if s.index != nil {
		s.index[id] = true
	}
	s.mu.Unlock()
	return store.InsertResult{ID: id, Inserted: true}, nil
}

// Payload converts record into an approved outflow on accountID.
func Payload(accountID string, record *models.Record) (transaction.PayloadTransaction, error) {
	if record == nil {
		return transaction.PayloadTransaction{}, errors.New("nil record")
	}
	date, err := api.DateFromString(record.Date)
	if err != nil {
		return transaction.PayloadTransaction{}, fmt.Errorf("parse date %q: %w", record.Date, err)
	}
	payee := record.Name
	memo := strings.Join(append([]string{CustomID(record.SourceID)}, record.Tags...), ",")
	return transaction.PayloadTransaction{
		AccountID: accountID,
		Date:      date,
		Amount:    Milliunits(record.Amount),
		Cleared:   transaction.ClearingStatusCleared,
		Approved:  true,
		PayeeName: &payee,
		Memo:      &memo,
	}, nil
}

// Milliunits converts a share into a YNAB outflow.
func Milliunits(amount decimal.Decimal) int64 {
	return amount.Shift(3).Round(0).Neg().IntPart()
}
