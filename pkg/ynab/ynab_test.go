package ynab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/splitsync/pkg/models"
	"github.com/yurifrl/splitsync/pkg/store"
)

func memo(s string) *string { return &s }

type fakeAccount struct {
	txs      []*transaction.Transaction
	lists    int
	created  []transaction.PayloadTransaction
	listErr  error
	writeErr error
}

func (f *fakeAccount) list(budgetID, accountID string, _ *transaction.Filter) ([]*transaction.Transaction, error) {
	f.lists++
	return f.txs, f.listErr
}

func (f *fakeAccount) create(budgetID string, payloads []transaction.PayloadTransaction) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.created = append(f.created, payloads...)
	return nil
}

func TestExtractCustomID(t *testing.T) {
	cases := map[string]string{
		"sw-501,source-Trip": "sw-501",
		`"sw-9"`:             "sw-9",
		"a1b2c3d4,extrato,-": "",
		"":                   "",
	}
	for in, want := range cases {
		if got := extractCustomID(&transaction.Transaction{Memo: memo(in)}); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
	if got := extractCustomID(&transaction.Transaction{}); got != "" {
		t.Errorf("nil memo: expected empty, got %q", got)
	}
}

func TestSinkLookupAndInsert(t *testing.T) {
	acct := &fakeAccount{txs: []*transaction.Transaction{
		{Memo: memo("sw-501,source-Trip")},
		{Memo: memo("sw-502"), Deleted: true},
	}}
	s := newSink("budget", "account", acct.list, acct.create, log.Default())

	cases := map[int64]store.LookupResult{501: store.Exists, 502: store.NotExists, 503: store.NotExists}
	for id, want := range cases {
		got, err := s.Lookup(context.Background(), id)
		if err != nil {
			t.Fatalf("Lookup(%d) failed: %v", id, err)
		}
		if got != want {
			t.Errorf("Lookup(%d): expected %s, got %s", id, want, got)
		}
	}
	if acct.lists != 1 {
		t.Errorf("expected index to load once, got %d", acct.lists)
	}

	res, err := s.Insert(context.Background(), &models.Record{
		Name: "Coffee", Date: "2024-03-01", Amount: decimal.RequireFromString("4.50"), SourceID: 503, Tags: []string{"source-Trip"},
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !res.Inserted || res.ID != "sw-503" {
		t.Errorf("unexpected result %+v", res)
	}
	if got, _ := s.Lookup(context.Background(), 503); got != store.Exists {
		t.Errorf("inserted record must be found, got %s", got)
	}

	if len(acct.created) != 1 {
		t.Fatalf("expected 1 created transaction, got %d", len(acct.created))
	}
	p := acct.created[0]
	if p.Amount != -4500 || p.AccountID != "account" || !p.Approved {
		t.Errorf("unexpected payload %+v", p)
	}
	if p.Memo == nil || *p.Memo != "sw-503,source-Trip" {
		t.Errorf("unexpected memo %v", p.Memo)
	}
}

func TestSinkReloadsIndex(t *testing.T) {
	acct := &fakeAccount{}
	s := newSink("budget", "account", acct.list, acct.create, log.Default())
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Lookup(context.Background(), 1)
	now = now.Add(indexTTL + time.Second)
	s.Lookup(context.Background(), 1)
	if acct.lists != 2 {
		t.Errorf("expected index reload after ttl, got %d loads", acct.lists)
	}
}

func TestSinkErrors(t *testing.T) {
	acct := &fakeAccount{listErr: errors.New("401"), writeErr: errors.New("429")}
	s := newSink("budget", "account", acct.list, acct.create, log.Default())

	if res, err := s.Lookup(context.Background(), 1); res != store.LookupFailed || !errors.Is(err, store.ErrLookupFailed) {
		t.Errorf("expected LookupFailed, got %s %v", res, err)
	}
	if _, err := s.Insert(context.Background(), &models.Record{Date: "2024-03-01", SourceID: 1}); !errors.Is(err, store.ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
	if _, err := s.Insert(context.Background(), &models.Record{Date: "yesterday", SourceID: 1}); !errors.Is(err, store.ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed for bad date, got %v", err)
	}
}

func TestMilliunits(t *testing.T) {
	cases := map[string]int64{"4.50": -4500, "0.0015": -2, "12": -12000}
	for in, want := range cases {
		if got := Milliunits(decimal.RequireFromString(in)); got != want {
			t.Errorf("%s: expected %d, got %d", in, want, got)
		}
	}
}
