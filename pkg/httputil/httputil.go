// Package httputil holds the HTTP plumbing shared by every remote collaborator:
// a rate limited transport and a JSON GET helper.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is returned by Do when the server answers with a non 2xx
// status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot http %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// limitedTransport waits on a token bucket before every round trip.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewClient returns a client with the given timeout. rps <= 0 disables rate
// limiting.
func NewClient(timeout time.Duration, rps float64) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		transport = &limitedTransport{base: transport, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Do sends req and decodes a 2xx JSON body into out. Non 2xx answers are
// returned as *StatusError; transport errors are returned unchanged.
func Do(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 200),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// DecodeError reports a 2xx body that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
