// Package heartbeat pings an external monitor after a completed run. A missing
// ping is how the monitor notices a failed run.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/splitsync/pkg/httputil"
)

var ErrPingFailed = errors.New("heartbeat failed")

// Pinger notifies the monitor. sent is false when no ping went out.
type Pinger interface {
	Ping(ctx context.Context) (sent bool, err error)
}

type Client struct {
	url    string
	http   *http.Client
	logger *log.Logger
}

// New returns a pinger for url. An empty url makes Ping a no-op.
func New(url string, httpClient *http.Client, logger *log.Logger) *Client {
	return &Client{url: url, http: httpClient, logger: logger}
}

func (c *Client) Ping(ctx context.Context) (bool, error) {
	if c.url == "" {
		c.logger.Debug("heartbeat url not configured, skipping")
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPingFailed, err)
	}
	var body json.RawMessage
	err = httputil.Do(c.http, req, &body)
	var decodeErr *httputil.DecodeError
	if errors.As(err, &decodeErr) {
		// Delivered; the monitor just did not answer with JSON.
		c.logger.Info("heartbeat sent")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPingFailed, err)
	}
	c.logger.Info("heartbeat sent", "response", string(body))
	return true, nil
}
