// Package classifier predicts a budget category for an expense description.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"

	"github.com/yurifrl/splitsync/pkg/httputil"
)

var ErrClassificationFailed = errors.New("classification failed")

// Classifier returns the category id predicted for description.
type Classifier interface {
	Classify(ctx context.Context, description string) (int64, error)
}

// Client calls the category prediction service.
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

func (c *Client) Classify(ctx context.Context, description string) (int64, error) {
	addr := c.baseURL + "/get_expense?" + url.Values{"expenseName": {description}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	var resp struct {
		CategoryID *int64 `json:"categoryId"`
	}
	if err := httputil.Do(c.http, req, &resp); err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrClassificationFailed, description, err)
	}
	if resp.CategoryID == nil {
		return 0, fmt.Errorf("%w: %q: no category in response", ErrClassificationFailed, description)
	}
	c.logger.Debug("classified expense", "description", description, "category_id", *resp.CategoryID)
	return *resp.CategoryID, nil
}

// Cached memoizes successful predictions by description. Failures are never
// cached.
type Cached struct {
	next  Classifier
	cache *cache.Cache
}

// NewCached wraps next; ttl <= 0 keeps entries for the process lifetime.
func NewCached(next Classifier, ttl time.Duration) *Cached {
	expiration := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
	}
	return &Cached{next: next, cache: cache.New(expiration, 10*time.Minute)}
}

func (c *Cached) Classify(ctx context.Context, description string) (int64, error) {
	if v, ok := c.cache.Get(description); ok {
		return v.(int64), nil
	}
	id, err := c.next.Classify(ctx, description)
	if err != nil {
		return 0, err
	}
	c.cache.SetDefault(description, id)
	return id, nil
}
