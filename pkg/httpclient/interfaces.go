package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header(key string) string
}

// Request describes a single outbound call.
type Request struct {
	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// A Client is a session: whoever creates it is responsible for calling Close.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
	Close() error
}
