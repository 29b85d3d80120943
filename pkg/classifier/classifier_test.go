package classifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/splitsync/pkg/httputil"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_expense" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("expenseName") {
		case "Coffee & cake":
			w.Write([]byte(`{"categoryId":7}`))
		case "Mystery":
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, httputil.NewClient(time.Second, 0), log.Default())

	id, err := c.Classify(context.Background(), "Coffee & cake")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if id != 7 {
		t.Errorf("expected category 7, got %d", id)
	}

	for _, desc := range []string{"Mystery", "Boom"} {
		if _, err := c.Classify(context.Background(), desc); !errors.Is(err, ErrClassificationFailed) {
			t.Errorf("%s: expected ErrClassificationFailed, got %v", desc, err)
		}
	}
}

type countingClassifier struct {
	calls int
	err   error
}

func (c *countingClassifier) Classify(ctx context.Context, description string) (int64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return int64(len(description)), nil
}

func TestCached(t *testing.T) {
	next := &countingClassifier{}
	c := NewCached(next, time.Minute)

	for i := 0; i < 3; i++ {
		id, err := c.Classify(context.Background(), "Groceries")
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if id != 9 {
			t.Errorf("expected 9, got %d", id)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}

	next.err = ErrClassificationFailed
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(context.Background(), "Rent"); err == nil {
			t.Errorf("expected error")
		}
	}
	if next.calls != 3 {
		t.Errorf("failures must not be cached, got %d calls", next.calls)
	}
}
