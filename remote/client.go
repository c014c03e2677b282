// Package remote talks to the university backend over plain HTTP and JSON.
//
// No generated client: requests are built by hand, responses come back as raw
// bytes and each endpoint decodes what it needs.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/credential"
	"github.com/campusapp/schedule-cache/registration"
	"github.com/campusapp/schedule-cache/schedule"
)

var (
	// ErrUnauthorized is returned for 401 and 403. It matches cache.ErrCredentialRejected.
	ErrUnauthorized = fmt.Errorf("remote: %w", cache.ErrCredentialRejected)

	// ErrNotFound is returned for 404.
	ErrNotFound = errors.New("remote: not found")
)

// StatusError is any other non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d %s", e.Method, e.Path, e.Code, e.Body)
}

// Request is one call to the backend.
type Request struct {
	// Path is appended to the client's base URL, e.g. "/schedule".
	Path string

	Query url.Values

	// Body is sent as JSON. A request with a body defaults to POST.
	Body []byte

	// Defaults to GET if no Body, POST otherwise.
	Method string
}

// Client is the HTTP implementation of the schedule and device endpoints.
type Client struct {
	base   string
	http   *http.Client
	gate   credential.Gate
	loc    *time.Location
	logger *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	HTTP    *http.Client    // http.DefaultClient with a 15s timeout when nil
	Gate    credential.Gate // source of the bearer token, may be nil
	Loc     *time.Location  // zone of clock-only times in schedule payloads
	Logger  *slog.Logger
}

// New returns a Client for o.BaseURL.
func New(o Options) *Client {
	if o.HTTP == nil {
		o.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	if o.Loc == nil {
		o.Loc = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Client{
		base:   strings.TrimRight(o.BaseURL, "/"),
		http:   o.HTTP,
		gate:   o.Gate,
		loc:    o.Loc,
		logger: o.Logger,
	}
}

// HTTPRequest builds the populated *http.Request for r.
func (c *Client) HTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := c.base + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	m := r.Method
	if m == "" {
		if r.Body == nil {
			m = http.MethodGet
		} else {
			m = http.MethodPost
		}
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, m, u, body)
	if err != nil {
		return nil, err
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.gate != nil {
		if cred, ok := c.gate.CurrentCredential(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		}
	}
	return req, nil
}

// Do sends r and returns the body of a 2xx answer.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	req, err := c.HTTPRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return data, nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	}
	return nil, &StatusError{
		Method: req.Method,
		Path:   r.Path,
		Code:   res.StatusCode,
		Body:   strings.TrimSpace(string(data)),
	}
}

// FetchSchedule returns the normalized sessions of date.
// Items the normalizer cannot read are dropped and logged.
func (c *Client) FetchSchedule(ctx context.Context, date schedule.DateKey) ([]schedule.Item, error) {
	data, err := c.Do(ctx, Request{Path: "/schedule", Query: url.Values{"date": {date.String()}}})
	if err != nil {
		return nil, fmt.Errorf("fetch schedule %s: %w", date, err)
	}
	items, dropped, err := schedule.Normalize(date, c.loc, data)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule %s: %w", date, err)
	}
	if dropped > 0 {
		c.logger.Info("dropped unreadable schedule items", "date", date, "dropped", dropped)
	}
	return items, nil
}

// FetchCourse returns the course info of group. An unknown group is ErrNotFound.
func (c *Client) FetchCourse(ctx context.Context, group string) (schedule.CourseInfo, error) {
	data, err := c.Do(ctx, Request{Path: "/schedule/course", Query: url.Values{"group": {group}}})
	if err != nil {
		return schedule.CourseInfo{}, fmt.Errorf("fetch course %s: %w", group, err)
	}
	var info schedule.CourseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return schedule.CourseInfo{}, fmt.Errorf("fetch course %s: decode: %w", group, err)
	}
	if info.Group == "" {
		info.Group = group
	}
	return info, nil
}

// RegisterDevice implements registration.DeviceAPI.
func (c *Client) RegisterDevice(ctx context.Context, d registration.Device) (registration.Result, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return registration.Result{}, err
	}
	data, err := c.Do(ctx, Request{Path: "/device/register", Body: body})
	if err != nil {
		return registration.Result{}, fmt.Errorf("register device: %w", err)
	}
	var res registration.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return registration.Result{}, fmt.Errorf("register device: decode: %w", err)
	}
	return res, nil
}

// SendTestNotification implements registration.DeviceAPI.
func (c *Client) SendTestNotification(ctx context.Context) (registration.Notification, error) {
	data, err := c.Do(ctx, Request{Path: "/device/test-notification", Method: http.MethodPost})
	if err != nil {
		return registration.Notification{}, fmt.Errorf("test notification: %w", err)
	}
	var n registration.Notification
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &n); err != nil {
			return registration.Notification{}, fmt.Errorf("test notification: decode: %w", err)
		}
	}
	return n, nil
}
