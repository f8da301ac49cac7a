// Package api is the single chokepoint for all HTTP calls against the Local
// Buyer Intelligence service. Every request attaches the session token as a
// bearer credential when one is present; every failure is normalized into an
// *Error; an authentication-failure response invalidates the session as a
// side effect. No call is ever retried: retry policy, if any, belongs to the
// caller.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/ntewolde/local-buyer-intelligence/internal/utils"
	"github.com/ntewolde/local-buyer-intelligence/pkg/session"
)

const (
	// DefaultBaseURL matches the backend's local dev default.
	DefaultBaseURL = "http://localhost:8000"

	apiPrefix      = "/api/v1"
	defaultTimeout = 30 * time.Second
)

// Client wraps one HTTP client and one session store. All endpoint wrappers
// in pkg/intel, pkg/ingest and pkg/report go through it.
type Client struct {
	baseURL string
	sess    *session.Store
	http    *retryablehttp.Client
}

// New builds a client for the given base URL (without the /api/v1 prefix).
// Every call is at-most-once: the underlying retry client is configured with
// zero retries and only used for its transport plumbing.
func New(baseURL string, sess *session.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.HTTPClient.Timeout = defaultTimeout

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sess:    sess,
		http:    retryClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithProxy routes all requests through an HTTP proxy. Useful for debugging.
func WithProxy(proxy string) Option {
	return func(c *Client) {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			utils.Log.Warnf("Ignoring invalid proxy URL %q: %v", proxy, err)
			return
		}
		c.http.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = d
	}
}

// Session exposes the store the client invalidates on auth failures.
func (c *Client) Session() *session.Store {
	return c.sess
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends one request and normalizes the outcome. fallback is the generic
// operation message used when the server supplies no detail.
func (c *Client) do(req *retryablehttp.Request, fallback string) ([]byte, error) {
	if token := c.sess.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: no response to pull a detail from.
		return nil, &Error{Detail: fallback, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{StatusCode: res.StatusCode, Detail: fallback, Err: err}
	}

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		// The stored token no longer works. Drop it so IsAuthenticated
		// reflects reality; the in-flight call still fails to its caller.
		utils.Log.Debugf("Got HTTP %d from %s, clearing stored session token", res.StatusCode, req.URL.Path)
		c.sess.Clear()
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail := gjson.GetBytes(body, "detail").String()
		if detail == "" {
			detail = fallback
		}
		return nil, &Error{StatusCode: res.StatusCode, Detail: detail}
	}
	return body, nil
}

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, fallback string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path, query), nil)
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	return c.do(req, fallback)
}

// Post issues a POST with no body, parameters travel in the query string.
// The import and census-refresh endpoints work this way.
func (c *Client) Post(ctx context.Context, path string, query url.Values, fallback string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path, query), nil)
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	return c.do(req, fallback)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte, fallback string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path, nil), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, fallback)
}

// PostForm issues a POST with a form-encoded body. Login uses this.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, fallback string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, fallback)
}

// PostMultipart issues a POST with a single file part under the given field
// name. The whole body is buffered up front; source files are operator CSVs,
// not bulk data.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, r io.Reader, fallback string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path, nil), buf.Bytes())
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, fallback)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, fallback string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, c.buildURL(path, nil), nil)
	if err != nil {
		return nil, &Error{Detail: fallback, Err: err}
	}
	return c.do(req, fallback)
}
