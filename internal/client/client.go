// Package client is a typed HTTP client for the book catalog API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bookcatalog/internal/book"
)

const apiPrefix = "/api/v1"

type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RPS        float64
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles on every attempt.
	Backoff    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "bookcatalog-client"
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/") + apiPrefix,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// APIError is a failure response whose code has no matching book error kind.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Page  *int `json:"page"`
		Limit *int `json:"limit"`
		Total *int `json:"total"`
	} `json:"meta"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// List fetches one page of the listing.
func (c *Client) List(ctx context.Context, q book.QuerySpec) (book.Page, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}

	var items []book.Book
	env, header, err := c.do(ctx, http.MethodGet, "/books/page?"+v.Encode(), nil, &items)
	if err != nil {
		return book.Page{}, err
	}

	page, limit := q.Page, q.Limit
	if env.Meta.Page != nil {
		page = *env.Meta.Page
	}
	if env.Meta.Limit != nil {
		limit = *env.Meta.Limit
	}
	total := len(items)
	if env.Meta.Total != nil {
		total = *env.Meta.Total
	} else if n, err := strconv.Atoi(header.Get(book.TotalCountHeader)); err == nil {
		total = n
	}
	if items == nil {
		items = []book.Book{}
	}
	return book.Page{Items: items, PageInfo: book.NewPageInfo(page, limit, total)}, nil
}

// All fetches every book, newest first.
func (c *Client) All(ctx context.Context) ([]book.Book, error) {
	return c.collection(ctx, "/books")
}

// Sorted fetches every book ordered by title, descending.
func (c *Client) Sorted(ctx context.Context) ([]book.Book, error) {
	return c.collection(ctx, "/books/sort")
}

func (c *Client) collection(ctx context.Context, path string) ([]book.Book, error) {
	var items []book.Book
	if _, _, err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []book.Book{}
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, id string) (book.Book, error) {
	var b book.Book
	_, _, err := c.do(ctx, http.MethodGet, "/book/"+url.PathEscape(id), nil, &b)
	return b, err
}

func (c *Client) Create(ctx context.Context, d book.Draft) (book.Book, error) {
	var b book.Book
	_, _, err := c.do(ctx, http.MethodPost, "/books", d, &b)
	return b, err
}

func (c *Client) Update(ctx context.Context, id string, p book.Patch) (book.Book, error) {
	var b book.Book
	_, _, err := c.do(ctx, http.MethodPatch, "/book/"+url.PathEscape(id), p, &b)
	return b, err
}

func (c *Client) Delete(ctx context.Context, id string) (book.Book, error) {
	var b book.Book
	_, _, err := c.do(ctx, http.MethodDelete, "/book/"+url.PathEscape(id), nil, &b)
	return b, err
}

// do sends one request and decodes the envelope's data into target. Only GET
// requests are retried, on transport errors, 429 and 5xx other than 501.
func (c *Client) do(ctx context.Context, method, path string, body, target any) (*envelope, http.Header, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, nil, err
		}
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var lastErr error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			backoff := c.backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		env, header, retry, err := c.attempt(ctx, method, path, payload, target)
		if err == nil {
			return env, header, nil
		}
		if !retry {
			return nil, nil, err
		}
		lastErr = err
	}
	if retries == 0 {
		return nil, nil, lastErr
	}
	return nil, nil, fmt.Errorf("after %d retries: %w", retries, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, target any) (*envelope, http.Header, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, false, err
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, nil, false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, false, ctxErr
		}
		return nil, nil, true, fmt.Errorf("%w: %w", book.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 500 {
			return nil, nil, retryable(resp.StatusCode), fmt.Errorf("%w: status %d", book.ErrStoreUnavailable, resp.StatusCode)
		}
		return nil, nil, false, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, nil, retryable(resp.StatusCode), responseError(resp.StatusCode, &env)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return nil, nil, false, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, resp.Header, false, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status != http.StatusNotImplemented)
}

func responseError(status int, env *envelope) error {
	if kind := book.FromCode(env.Error.Code); kind != nil {
		if env.Error.Message == "" {
			return kind
		}
		return fmt.Errorf("%w: %s", kind, env.Error.Message)
	}
	if status >= 500 {
		return fmt.Errorf("%w: %w", book.ErrStoreUnavailable, &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message})
	}
	return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message}
}
