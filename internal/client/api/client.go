// Package api is the HTTP client used by the ticket display and the
// check-in scanner.  Failure responses are decoded back into
// *ticket.Error with the server's kind and message untouched; transport
// failures become NetworkError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Client talks to the check-in server.
type Client struct {
	base   string
	bearer string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// New returns a client for the server at baseURL that authenticates with
// the given access token.
func New(baseURL, accessToken string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		bearer: accessToken,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issuedBody struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type failureBody struct {
	Error   ticket.Kind `json:"error"`
	Message string      `json:"message"`
}

// FetchTicket requests a fresh ticket for the authenticated user.
func (c *Client) FetchTicket(ctx context.Context, eventID string) (ticket.Issued, error) {
	var out issuedBody
	path := "/v1/events/" + url.PathEscape(eventID) + "/ticket"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return ticket.Issued{}, err
	}
	return ticket.Issued{Token: out.Token, ExpiresAt: out.ExpiresAt}, nil
}

// Redeem submits a scanned token.  With a non-empty eventID the
// station-scoped endpoint is used.
func (c *Client) Redeem(ctx context.Context, eventID, token string) (ticket.Redemption, error) {
	path := "/v1/check-in"
	if eventID != "" {
		path = "/v1/events/" + url.PathEscape(eventID) + "/check-in"
	}
	var out ticket.Redemption
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"token": token}, &out); err != nil {
		return ticket.Redemption{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ticket.Wrap(ticket.KindNetworkError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ticket.Wrap(ticket.KindNetworkError, err)
	}
	if resp.StatusCode >= 300 {
		var f failureBody
		if json.Unmarshal(data, &f) == nil && f.Error != "" {
			return &ticket.Error{Kind: f.Error, Message: f.Message}
		}
		return ticket.Wrap(ticket.KindNetworkError, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ticket.Wrap(ticket.KindNetworkError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
