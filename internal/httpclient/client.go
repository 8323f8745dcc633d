// Package httpclient builds the HTTP client used to talk to model servers.
//
// Model servers are frequently self-hosted behind a private CA, on a LAN
// address or on localhost, so unlike a general-purpose fetcher this client
// does not block private addresses. It restricts schemes, caps redirects,
// trusts an optional PEM bundle on top of the system roots and can throttle
// outgoing requests.
package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/strata/errors"
)

// Options configures a Client
type Options struct {
	Timeout              time.Duration
	CABundle             string   // PEM file appended to the system roots
	MaxRequestsPerMinute int      // 0 disables throttling
	AllowedSchemes       []string // Default: ["http", "https"]
	MaxRedirects         int      // Default: 10
}

// Client wraps http.Client with scheme checks and optional throttling
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
	limiter        *rate.Limiter
}

// New creates a client. A CA bundle that cannot be read or holds no
// certificates is a configuration error.
func New(opts Options) (*Client, error) {
	client := &Client{
		Client:         &http.Client{Timeout: opts.Timeout},
		allowedSchemes: opts.AllowedSchemes,
		maxRedirects:   opts.MaxRedirects,
	}
	if len(client.allowedSchemes) == 0 {
		client.allowedSchemes = []string{"http", "https"}
	}
	if client.maxRedirects <= 0 {
		client.maxRedirects = 10
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	tlsConfig, err := loadTLSConfig(opts.CABundle)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	client.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.MaxRequestsPerMinute > 0 {
		perSecond := rate.Limit(float64(opts.MaxRequestsPerMinute) / 60.0)
		client.limiter = rate.NewLimiter(perSecond, 1)
	}

	return client, nil
}

// WrapClient wraps an existing http.Client, for tests against httptest servers
func WrapClient(hc *http.Client) *Client {
	return &Client{
		Client:         hc,
		allowedSchemes: []string{"http", "https"},
		maxRedirects:   10,
	}
}

func loadTLSConfig(caBundle string) (*tls.Config, error) {
	if caBundle == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caBundle)
	if err != nil {
		return nil, errors.WithHint(
			errors.WrapConfig(err, "failed to read CA bundle %s", caBundle),
			"check --ca-bundle or api.ca_bundle",
		)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.NewConfigError("CA bundle %s contains no PEM certificates", caBundle)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}
	if u.User != nil {
		return errors.New("URL must not embed credentials")
	}
	if u.Hostname() == "" {
		return errors.New("URL missing hostname")
	}
	return nil
}

// ValidateURL parses and checks a URL string before creating a request
func (c *Client) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do waits for the limiter, validates the URL and executes the request
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	if err := c.wait(req.Context()); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}
	return nil
}
