// Package chatapi is the widget's transport to the chat endpoint.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"atlas-widget/internal/widget"
)

// DefaultEndpoint is where the local server mounts the chat API.
const DefaultEndpoint = "http://localhost:5000/api/chat"

type sendRequest struct {
	Message string `json:"message"`
}

// Client posts one message per call. Any response whose body decodes as a
// JSON object is a Reply, whatever its status code; everything else is an
// error.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each request. Zero or less leaves the transport
// default in place.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// New returns a Client posting to endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("chatapi: endpoint must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts message and decodes the reply body, however large.
func (c *Client) Send(ctx context.Context, message string) (widget.Reply, error) {
	body, err := json.Marshal(sendRequest{Message: message})
	if err != nil {
		return widget.Reply{}, errors.Wrap(err, "chatapi: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return widget.Reply{}, errors.Wrap(err, "chatapi: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return widget.Reply{}, errors.Wrap(err, "chatapi: request failed")
	}
	defer func() { _ = res.Body.Close() }()

	var reply widget.Reply
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return widget.Reply{}, errors.Wrapf(err, "chatapi: decode response (status %d)", res.StatusCode)
	}
	return reply, nil
}
