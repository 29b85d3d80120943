package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"name":"ok"}`))
		case "/bad":
			w.Write([]byte(`{"name":`))
		default:
			http.Error(w, "nope", http.StatusTeapot)
		}
	}))
	defer srv.Close()

	client := NewClient(time.Second, 0)

	var out struct {
		Name string `json:"name"`
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	if err := Do(client, req, &out); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if out.Name != "ok" {
		t.Errorf("expected name ok, got %q", out.Name)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/bad", nil)
	var decodeErr *DecodeError
	if err := Do(client, req, &out); !errors.As(err, &decodeErr) {
		t.Errorf("expected DecodeError, got %v", err)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/other", nil)
	var statusErr *StatusError
	if err := Do(client, req, &out); !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTeapot {
		t.Errorf("expected StatusError 418, got %v", err)
	}
}

func TestNewClientRateLimited(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	client := NewClient(time.Second, 50)
	if _, ok := client.Transport.(*limitedTransport); !ok {
		t.Fatalf("expected a rate limited transport, got %T", client.Transport)
	}
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if err := Do(client, req, nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if hits != 3 {
		t.Errorf("expected 3 hits, got %d", hits)
	}
}
