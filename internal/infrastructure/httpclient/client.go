package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3

	maxResponseBytes = 4 << 20
)

type CredentialsMode string

const (
	CredentialsOmit       CredentialsMode = "omit"
	CredentialsSameOrigin CredentialsMode = "same-origin"
	CredentialsInclude    CredentialsMode = "include"
)

type Config struct {
	BaseURL     string
	Headers     map[string]string
	Credentials CredentialsMode
	Timeout     time.Duration
	// Retries is advisory; callers feed it into their own retry policy.
	Retries int

	HTTPClient *http.Client
}

type Client struct {
	baseURL    *url.URL
	headers    http.Header
	timeout    time.Duration
	retries    int
	httpClient *http.Client
}

type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

var errRequestTimeout = errors.New("httpclient: request timeout")

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	httpClient, err := buildHTTPClient(cfg.HTTPClient, cfg.Credentials, base)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    base,
		headers:    headers,
		timeout:    timeout,
		retries:    retries,
		httpClient: httpClient,
	}, nil
}

func buildHTTPClient(base *http.Client, mode CredentialsMode, origin *url.URL) (*http.Client, error) {
	client := &http.Client{}
	if base != nil {
		copied := *base
		client = &copied
	}

	switch mode {
	case "", CredentialsOmit:
		client.Jar = nil
	case CredentialsInclude, CredentialsSameOrigin:
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client.Jar = jar
		if mode == CredentialsSameOrigin {
			client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				if req.URL.Host != origin.Host {
					return fmt.Errorf("redirect to %s leaves origin %s", req.URL.Host, origin.Host)
				}
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			}
		}
	default:
		return nil, fmt.Errorf("unsupported credentials mode %q", mode)
	}
	return client, nil
}

func (c *Client) Timeout() time.Duration { return c.timeout }

func (c *Client) Retries() int { return c.retries }

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers}, out)
}

func (c *Client) Put(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Headers: headers}, out)
}

func (c *Client) Delete(ctx context.Context, path string, headers map[string]string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Headers: headers}, out)
}

// Do sends one request. Non-2xx responses come back as *domain.APIError and a
// call outliving the client timeout as *domain.TimeoutError. When out is
// non-nil the body is decoded into it.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	body, err := encodeBody(r.Body)
	if err != nil {
		return fmt.Errorf("encode %s %s body: %w", method, r.Path, err)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(r.Path, r.Query), body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, r.Path, err)
	}
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(context.Cause(ctx), errRequestTimeout) {
			return &domain.TimeoutError{Duration: c.timeout}
		}
		return fmt.Errorf("%s %s: %w", method, r.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(context.Cause(ctx), errRequestTimeout) {
			return &domain.TimeoutError{Duration: c.timeout}
		}
		return fmt.Errorf("read %s %s response: %w", method, r.Path, err)
	}
	text := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.APIError{StatusCode: resp.StatusCode, Body: text}
	}
	if out == nil {
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return domain.WrapError(domain.ErrInvalidResponse, "decode "+r.Path+" response", errors.New("empty body"))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrInvalidResponse, "decode "+r.Path+" response", err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	if path != "" && path != "/" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(body any) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(v), nil
	case string:
		return strings.NewReader(v), nil
	case io.Reader:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}
