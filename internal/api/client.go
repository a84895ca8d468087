package api

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	appLog "evsched/internal/log"
	"evsched/internal/model"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultRatePerSec = 10

	// maxErrorBody bounds how much of a failed response is read for the detail.
	maxErrorBody = 64 << 10

	HeaderRequestID = "X-Request-ID"
)

// Options configures a Client. Zero values pick defaults.
type Options struct {
	// BaseURL is the backend origin plus API prefix,
	// e.g. "http://127.0.0.1:8000/api/v1".
	BaseURL string

	Timeout    time.Duration
	RatePerSec int

	// HTTPClient overrides the default client (tests use the httptest one).
	HTTPClient *http.Client
}

// Client talks to the backend's /events endpoints.
type Client struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// Error is a non-2xx answer from the backend.
type Error struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: backend returned %d", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api: base URL is empty")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		base:    base,
		client:  hc,
		// Burst equals the per-second rate.
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
	}, nil
}

// ListEvents fetches one page. Pages are 1-indexed.
func (c *Client) ListEvents(ctx context.Context, page, limit int) (model.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out model.Page
	if err := c.do(ctx, http.MethodGet, "/events", q, nil, &out); err != nil {
		return model.Page{}, err
	}
	if out.Events == nil {
		out.Events = []model.Event{}
	}
	return out, nil
}

// CreateEvent posts a new event and returns it with its assigned ID.
func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	if in.RecurringDays == nil {
		in.RecurringDays = []int{}
	}
	var out model.Event
	if err := c.do(ctx, http.MethodPost, "/events", nil, in, &out); err != nil {
		return model.Event{}, err
	}
	if out.ID == "" {
		return model.Event{}, errors.New("api: created event has no id")
	}
	return out, nil
}

// UpdateEvent sends only the changed fields. The backend answers with either
// the updated event or {"eventId": ...}; both are accepted.
func (c *Client) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) error {
	var out struct {
		ID      string `json:"id"`
		EventID string `json:"eventId"`
	}
	if err := c.do(ctx, http.MethodPut, "/events/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return err
	}
	if got := firstNonEmpty(out.EventID, out.ID); got != "" && got != id {
		return fmt.Errorf("api: update answered for event %q, want %q", got, id)
	}
	return nil
}

// DeleteEvent removes an event. patchIndex is the position in the global
// ordering the backend should backfill from (0: no backfill wanted).
func (c *Client) DeleteEvent(ctx context.Context, id string, patchIndex int) (model.Deletion, error) {
	q := url.Values{}
	q.Set("patch_index", strconv.Itoa(patchIndex))

	var out model.Deletion
	if err := c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), q, nil, &out); err != nil {
		return model.Deletion{}, err
	}
	if out.EventID == "" {
		out.EventID = id
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}

	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("backend request failed", err, "method", method, "path", path, "request_id", reqID)
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	appLog.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Detail: readDetail(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// readDetail extracts a human readable reason from an error body. FastAPI
// style {"detail": "..."} and {"error": "..."} are understood; anything
// else is returned trimmed.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch d := payload.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
