// Package adcatalog talks to the advertising platform's product catalog API.
package adcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes caps how much of an error body is kept for diagnostics.
const maxBodyBytes = 64 << 10

// Response is the raw outcome of one deletion call. Every HTTP reply,
// whatever its status, is a Response; only transport failures are errors.
type Response struct {
	StatusCode int
	Body       string
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type apiErrorBody struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// Detail renders the body for a diagnostic message. Graph-style error
// objects are condensed; anything else is returned verbatim.
func (r Response) Detail() string {
	var e apiErrorBody
	if err := json.Unmarshal([]byte(r.Body), &e); err == nil && e.Error.Message != "" {
		return fmt.Sprintf("http %d: %s (type=%s code=%d subcode=%d trace=%s)",
			r.StatusCode, e.Error.Message, e.Error.Type, e.Error.Code, e.Error.ErrorSubcode, e.Error.FBTraceID)
	}
	body := strings.TrimSpace(r.Body)
	if body == "" {
		return fmt.Sprintf("http %d", r.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", r.StatusCode, body)
}

// Client deletes catalog items by id with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Delete sends DELETE {baseURL}/{externalID}.
func (c *Client) Delete(ctx context.Context, externalID string) (Response, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("delete %s: %w", externalID, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response for %s: %w", externalID, err)
	}

	return Response{StatusCode: res.StatusCode, Body: string(raw)}, nil
}
