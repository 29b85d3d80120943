package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/splitsync/pkg/httputil"
	"github.com/yurifrl/splitsync/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, httputil.NewClient(time.Second, 0), log.Default())
}

func TestLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkExpenseExistsBySplitwiseId" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("splitwiseExpenseId") {
		case "1":
			w.Write([]byte(`{"exists":true}`))
		case "2":
			w.Write([]byte(`{"exists":false}`))
		case "3":
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	cases := []struct {
		id      int64
		want    LookupResult
		wantErr bool
	}{
		{1, Exists, false},
		{2, NotExists, false},
		{3, LookupFailed, true},
		{4, LookupFailed, true},
	}
	for _, tc := range cases {
		got, err := c.Lookup(context.Background(), tc.id)
		if got != tc.want {
			t.Errorf("%d: expected %s, got %s", tc.id, tc.want, got)
		}
		if tc.wantErr && !errors.Is(err, ErrLookupFailed) {
			t.Errorf("%d: expected ErrLookupFailed, got %v", tc.id, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%d: unexpected error %v", tc.id, err)
		}
	}
}

func TestInsert(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/expenseEntry" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"createRes2":{"id":42}}`))
	})

	res, err := c.Insert(context.Background(), &models.Record{
		Name:       "Coffee",
		Date:       "2024-03-01",
		Amount:     decimal.RequireFromString("4.5"),
		SourceID:   501,
		CategoryID: 7,
		Tags:       []string{"source-Trip"},
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !res.Inserted || res.ID != "42" {
		t.Errorf("unexpected result %+v", res)
	}

	if got["name"] != "Coffee" || got["date"] != "2024-03-01" {
		t.Errorf("unexpected body %v", got)
	}
	if got["amount"] != json.Number("4.50") {
		t.Errorf("expected amount 4.50, got %v", got["amount"])
	}
	if got["splitwiseExpenseId"] != json.Number("501") || got["typeId"] != json.Number("7") {
		t.Errorf("unexpected ids in body %v", got)
	}
	tags, _ := got["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "source-Trip" {
		t.Errorf("unexpected tags %v", got["tags"])
	}
}

func TestInsertFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	})
	if _, err := c.Insert(context.Background(), &models.Record{SourceID: 9}); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
}

func TestInsertWithoutID(t *testing.T) {
	for _, body := range []string{`{}`, `{"createRes2":{}}`, `{"createRes2":{"id":null}}`, `{"createRes2":{"id":""}}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		res, err := c.Insert(context.Background(), &models.Record{SourceID: 9, Amount: decimal.NewFromInt(1)})
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("%s: expected ErrWriteFailed, got %v", body, err)
		}
		if res.Inserted {
			t.Errorf("%s: insert without id must not be reported as inserted", body)
		}
	}
}

type recordingSink struct{ calls int }

func (s *recordingSink) Insert(ctx context.Context, record *models.Record) (InsertResult, error) {
	s.calls++
	return InsertResult{ID: "1", Inserted: true}, nil
}

func TestReadOnly(t *testing.T) {
	next := &recordingSink{}
	sink := ReadOnly(next, log.Default())

	res, err := sink.Insert(context.Background(), &models.Record{SourceID: 1, Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if res.Inserted {
		t.Errorf("read-only insert must report Inserted=false")
	}
	if next.calls != 0 {
		t.Errorf("read-only sink reached the wrapped sink %d times", next.calls)
	}
}

func TestReadOnlyIdempotent(t *testing.T) {
	next := &recordingSink{}
	once := ReadOnly(next, log.Default())
	if twice := ReadOnly(once, log.Default()); twice != once {
		t.Errorf("expected wrapping a read-only sink to return it unchanged")
	}
	if IsReadOnly(next) || !IsReadOnly(once) {
		t.Errorf("IsReadOnly mismatch")
	}
}
