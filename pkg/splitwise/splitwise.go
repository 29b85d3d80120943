// Package splitwise is a minimal Splitwise v3 API client: groups, expenses and
// the current user.
package splitwise

import (
	"context"
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

const DefaultBaseURL = "https://secure.splitwise.com/api/v3.0"

var (
	ErrUnavailable       = errors.New("splitwise unavailable")
	ErrAuth              = errors.New("splitwise rejected credential")
	ErrMalformedResponse = errors.New("splitwise malformed response")
)

// Client talks to the Splitwise API with a bearer token. It never retries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

func New(baseURL, token string, httpClient *http.Client, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger,
	}
}

// ListGroups returns every group the user belongs to.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var resp struct {
		Groups []models.Group `json:"groups"`
	}
	if err := c.get(ctx, "get_groups", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Groups == nil {
		return nil, fmt.Errorf("%w: missing groups", ErrMalformedResponse)
	}
	return resp.Groups, nil
}

// ListTransactions returns at most limit expenses, scoped to groupID when set.
func (c *Client) ListTransactions(ctx context.Context, groupID *int64, limit int) ([]models.RawTransaction, error) {
	q := url.Values{}
	if groupID != nil {
		q.Set("group_id", strconv.FormatInt(*groupID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Expenses []models.RawTransaction `json:"expenses"`
	}
	if err := c.get(ctx, "get_expenses", q, &resp); err != nil {
		return nil, err
	}
	if resp.Expenses == nil {
		return nil, fmt.Errorf("%w: missing expenses", ErrMalformedResponse)
	}
	return resp.Expenses, nil
}

// CurrentUser returns the owner of the token.
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.get(ctx, "get_current_user", nil, &resp); err != nil {
		return models.User{}, err
	}
	if resp.User == nil {
		return models.User{}, fmt.Errorf("%w: missing user", ErrMalformedResponse)
	}
	return *resp.User, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	addr := c.baseURL + "/" + endpoint
	if len(q) > 0 {
		addr += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("splitwise request", "endpoint", endpoint, "query", q.Encode())
	return classify(endpoint, httputil.Do(c.http, req, out))
}

// classify maps transport and status errors onto the package sentinels.
func classify(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *httputil.StatusError
	var decodeErr *httputil.DecodeError
	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s: %v", ErrAuth, endpoint, err)
		case statusErr.StatusCode >= 500:
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
		default:
			return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
		}
	case errors.As(err, &decodeErr):
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
}
