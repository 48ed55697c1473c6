// Package arnhem is a client for the parking-spot layer of the Open Data
// Platform of the municipality of Arnhem (geo.arnhem.nl ArcGIS services).
package arnhem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/arnhem-parking/pkg/httpclient"
)

// Version is sent in the User-Agent header.
const Version = "1.0.0"

const (
	DefaultBaseURL = "https://geo.arnhem.nl/arcgis/rest/services/"
	DefaultTimeout = 10 * time.Second

	DefaultLimit  = 10
	DefaultFilter = "1=1"

	parkingLayerPath = "OpenData/Parkeervakken/MapServer/0/query"
	userAgent        = "GoODPArnhem/" + Version

	msgTimeout       = "timeout occurred while connecting to the Open Data Platform API"
	msgCommunication = "error occurred while communicating with the Open Data Platform API"
	msgContentType   = "unexpected content type response from the Open Data Platform API"
	msgDecode        = "unable to decode response from the Open Data Platform API"
)

// Client queries the Open Data Platform API of Arnhem.
//
// A Client either borrows a session passed with WithSession, which the caller
// keeps owning, or lazily creates its own on the first request and releases it
// on Close.
type Client struct {
	baseURL *url.URL
	timeout time.Duration
	log     Logger

	newSession func(timeout time.Duration) httpclient.Client

	mu          sync.Mutex
	session     httpclient.Client
	ownsSession bool
	closed      bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request/response cycle. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSession makes the client use an externally owned session. Close leaves it open.
func WithSession(s httpclient.Client) Option {
	return func(c *Client) {
		if s != nil {
			c.session = s
			c.ownsSession = false
		}
	}
}

// WithLogger sets the logger used for request and failure events.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithBaseURL overrides the services root. An invalid URL is ignored.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
			c.baseURL = u
		}
	}
}

// New builds a Client. Without options it targets DefaultBaseURL with DefaultTimeout.
func New(opts ...Option) *Client {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		baseURL: base,
		timeout: DefaultTimeout,
		log:     noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.newSession = func(timeout time.Duration) httpclient.Client {
		return httpclient.NewRestyClient(timeout, restyLogger{log: c.log})
	}
	return c
}

// Use creates a Client, passes it to fn and closes it on every exit path.
func Use(ctx context.Context, fn func(ctx context.Context, c *Client) error, opts ...Option) (err error) {
	c := New(opts...)
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close client: %w", cerr))
		}
	}()
	return fn(ctx, c)
}

// Locations returns parking spots matching filter, at most limit of them.
// A non-positive limit falls back to DefaultLimit and an empty filter to DefaultFilter.
func (c *Client) Locations(ctx context.Context, limit int, filter string) ([]ParkingSpot, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if strings.TrimSpace(filter) == "" {
		filter = DefaultFilter
	}

	envelope, err := c.request(ctx, parkingLayerPath, http.MethodGet, map[string]string{
		"where":             filter,
		"outFields":         "*",
		"outSR":             "4326",
		"f":                 "json",
		"resultRecordCount": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}

	spots, err := MapLocations(envelope)
	if err != nil {
		c.log.WarnObj("parking locations unavailable", "locations_error", map[string]any{
			"filter": filter,
			"limit":  limit,
			"error":  err.Error(),
		})
		return nil, err
	}

	c.log.DebugObj("parking locations fetched", "locations_result", map[string]any{
		"filter": filter,
		"limit":  limit,
		"count":  len(spots),
	})
	return spots, nil
}

// Close releases the session if the client created it. It is safe to call more
// than once; only the first call has an effect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.session == nil || !c.ownsSession {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.ownsSession = false
	return err
}

// request issues a call to uri (relative to the base URL) and returns the decoded JSON body.
func (c *Client) request(ctx context.Context, uri, method string, params map[string]string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ref, err := url.Parse(uri)
	if err != nil {
		return nil, &Error{Msg: "invalid request uri", Err: err}
	}
	target := c.baseURL.ResolveReference(ref).String()

	session, err := c.acquireSession()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.DebugObj("open data request", "request", map[string]any{
		"method": method,
		"url":    target,
		"params": params,
	})

	resp, err := session.Do(ctx, httpclient.Request{
		Method: method,
		URL:    target,
		Params: params,
		Headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		},
	})
	if err != nil {
		if isTimeout(ctx, err) {
			c.logFailure(target, msgTimeout, err)
			return nil, &ConnectionError{Msg: msgTimeout, Err: err}
		}
		c.logFailure(target, msgCommunication, err)
		return nil, &ConnectionError{Msg: msgCommunication, Err: err}
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		statusErr := &StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		c.logFailure(target, msgCommunication, statusErr)
		return nil, &ConnectionError{Msg: msgCommunication, Err: statusErr}
	}

	contentType := resp.Header("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return nil, &Error{
			Msg:         msgContentType,
			ContentType: contentType,
			Response:    string(resp.Body()),
		}
	}

	var out any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &Error{
			Msg:         msgDecode,
			ContentType: contentType,
			Response:    string(resp.Body()),
			Err:         err,
		}
	}
	return out, nil
}

func (c *Client) acquireSession() (httpclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &Error{Msg: "request rejected", Err: ErrClosed}
	}
	if c.session == nil {
		c.session = c.newSession(c.timeout)
		c.ownsSession = true
	}
	return c.session, nil
}

func (c *Client) logFailure(target, msg string, err error) {
	c.log.ErrorObj(msg, "request_error", map[string]any{
		"url":   target,
		"error": err.Error(),
	})
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
