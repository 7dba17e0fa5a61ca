// Package freecrypto is a small client for api.freecryptoapi.com.
package freecrypto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.freecryptoapi.com/v1"

const maxBodyBytes = 4 << 20

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("freecrypto: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New builds a client. An empty key is allowed; the API answers such requests
// with an error status that callers surface as text.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// GetConversion converts amount of from into to. Symbols are sent upper-case.
// The compacted JSON body is returned as is.
func (c *Client) GetConversion(ctx context.Context, from, to string, amount float64) (string, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return "", errors.New("freecrypto: from and to symbols are required")
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	raw, err := c.get(ctx, "/getConversion", q)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw)), nil
	}
	return buf.String(), nil
}

// GetCryptoList returns the list of supported assets as raw JSON.
func (c *Client) GetCryptoList(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.get(ctx, "/getCryptoList", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("freecrypto: getCryptoList returned invalid JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "freecrypto: create request")
	}
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "freecrypto: GET %s", path)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "freecrypto: read response body")
	}
	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
