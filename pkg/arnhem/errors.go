package arnhem

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrClient is the root of every error returned by this package.
	ErrClient = errors.New("odp arnhem")
	// ErrConnection marks timeouts, transport failures and HTTP error statuses.
	ErrConnection = fmt.Errorf("%w: connection error", ErrClient)
	// ErrNoResults marks a query envelope without usable features.
	ErrNoResults = fmt.Errorf("%w: no results", ErrClient)
	// ErrClosed is returned for requests issued after Close.
	ErrClosed = errors.New("client is closed")
)

const summaryMaxLen = 256

// Error is the generic client error. It carries the received content type and
// raw response text when the API answered with something other than JSON.
type Error struct {
	Msg         string
	ContentType string
	Response    string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.ContentType != "" {
		msg = fmt.Sprintf("%s (content-type %q)", msg, e.ContentType)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error { return chain(ErrClient, e.Err) }

// Summary returns a short description of the response body: the page title for
// HTML error pages, otherwise a trimmed snippet of the text.
func (e *Error) Summary() string {
	body := strings.TrimSpace(e.Response)
	if body == "" {
		return "<empty>"
	}
	if strings.Contains(strings.ToLower(e.ContentType), "html") {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(body)))
		if err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1, h2").First().Text())
			}
			if title != "" {
				return title
			}
		}
	}
	if len(body) > summaryMaxLen {
		return body[:summaryMaxLen] + "..."
	}
	return body
}

// ConnectionError reports a timeout, transport failure or HTTP error status.
type ConnectionError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConnectionError) Unwrap() []error { return chain(ErrConnection, e.Err) }

// StatusError is the cause attached to a ConnectionError for 4xx/5xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > summaryMaxLen {
		body = body[:summaryMaxLen] + "..."
	}
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// NoResultsError reports an envelope with a missing or empty features list.
// Detail holds the service error message when the API returned one.
type NoResultsError struct {
	Detail string
	Err    error
}

func (e *NoResultsError) Error() string {
	msg := "no results found, check your filter"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *NoResultsError) Unwrap() []error { return chain(ErrNoResults, e.Err) }

// MappingError reports a feature record that lacks an expected key or has the
// wrong shape.
type MappingError struct {
	Key string
	Err error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("map parking spot %s: %v", e.Key, e.Err)
	}
	return "map parking spot " + e.Key
}

func (e *MappingError) Unwrap() []error { return chain(ErrClient, e.Err) }

func chain(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}
