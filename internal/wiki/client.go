// Package wiki is a small MediaWiki action API client covering what the
// sprite editor needs: revisions, diffs, conditional edits, stashed uploads,
// permissions and purges.
package wiki

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultUserAgent  = "SpriteEdit/1.0"
	maxBodySize       = 64 << 20
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one wiki's api.php endpoint.
type Client struct {
	endpoint   string
	http       Doer
	userAgent  string
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error

	csrf string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithRetryDelay sets the fixed delay before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// New returns a client for the api.php URL. The default transport keeps
// cookies so a bot-password login carries over to later requests.
func New(endpoint string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		endpoint:   endpoint,
		http:       &http.Client{Jar: jar, Timeout: 60 * time.Second},
		userAgent:  defaultUserAgent,
		retryDelay: defaultRetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the api.php URL.
func (c *Client) Endpoint() string { return c.endpoint }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry runs fn, and once more after the fixed delay when the first failure
// is transient.
func (c *Client) retry(ctx context.Context, action string, fn func() (gjson.Result, error)) (gjson.Result, error) {
	events.Wiki.Request(action, 1)
	res, err := fn()
	if err == nil || !transient(err) {
		return res, err
	}
	events.Wiki.Retry(action, err)
	if serr := c.sleep(ctx, c.retryDelay); serr != nil {
		return gjson.Result{}, serr
	}
	events.Wiki.Request(action, 2)
	return fn()
}

func baseParams(params url.Values) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	out.Set("format", "json")
	out.Set("formatversion", "2")
	return out
}

// get issues a GET request with retry.
func (c *Client) get(ctx context.Context, params url.Values) (gjson.Result, error) {
	q := baseParams(params)
	return c.retry(ctx, params.Get("action"), func() (gjson.Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return gjson.Result{}, err
		}
		return c.send(req)
	})
}

// post issues a form POST with retry.
func (c *Client) post(ctx context.Context, params url.Values) (gjson.Result, error) {
	form := baseParams(params)
	body := form.Encode()
	return c.retry(ctx, params.Get("action"), func() (gjson.Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
		if err != nil {
			return gjson.Result{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.send(req)
	})
}

// postFile issues a multipart POST carrying data as the "file" field.
func (c *Client) postFile(ctx context.Context, params url.Values, filename string, data []byte) (gjson.Result, error) {
	form := baseParams(params)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range form {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return gjson.Result{}, err
			}
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return gjson.Result{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return gjson.Result{}, err
	}
	if err := mw.Close(); err != nil {
		return gjson.Result{}, err
	}
	payload := buf.Bytes()
	return c.retry(ctx, params.Get("action"), func() (gjson.Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return gjson.Result{}, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return c.send(req)
	})
}

func (c *Client) send(req *http.Request) (gjson.Result, error) {
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, &HTTPError{Status: resp.StatusCode, URL: req.URL.Redacted()}
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid json response from %s", req.URL.Redacted())
	}
	res := gjson.ParseBytes(data)
	if e := res.Get("error"); e.Exists() {
		return res, &APIError{Code: e.Get("code").String(), Info: e.Get("info").String()}
	}
	return res, nil
}

// token returns the cached CSRF token, fetching it on first use.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.csrf != "" {
		return c.csrf, nil
	}
	res, err := c.get(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}})
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	tok := res.Get("query.tokens.csrftoken").String()
	if tok == "" {
		return "", fmt.Errorf("fetch csrf token: empty token")
	}
	c.csrf = tok
	return tok, nil
}

// withToken adds the CSRF token to params and drops the cached token when
// the server rejects it so the next call fetches a fresh one.
func (c *Client) withToken(ctx context.Context, params url.Values, call func(url.Values) (gjson.Result, error)) (gjson.Result, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	params.Set("token", tok)
	res, err := call(params)
	if apiErr, ok := err.(*APIError); ok && apiErr.Code == "badtoken" {
		c.csrf = ""
	}
	return res, err
}
