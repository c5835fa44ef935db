package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxEchoBodySize bounds how much of the echo response is read.
const maxEchoBodySize = 64 * 1024

// Result is the outcome of probing one target. Identity is the outbound
// address reported by the echo endpoint and is only set when Reachable.
type Result struct {
	Reachable bool   `json:"reachable"`
	Identity  string `json:"identity,omitempty"`
}

// Prober checks a single relay. Implementations must be safe for
// concurrent use and must not return before ctx is done or the probe ends.
type Prober interface {
	Probe(ctx context.Context, target string) Result
}

// HTTPProber requests the echo endpoint through the target relay.
type HTTPProber struct {
	echoURL   string
	userAgent string
	timeout   time.Duration
}

// NewHTTPProber creates a prober from the sweeper configuration.
func NewHTTPProber(cfg Config) *HTTPProber {
	cfg = cfg.withDefaults()
	return &HTTPProber{
		echoURL:   cfg.EchoURL,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
}

// Probe performs one GET through target. Any transport error, timeout,
// non-200 status or body without an "origin" field is unreachable.
func (p *HTTPProber) Probe(ctx context.Context, target string) Result {
	proxyURL, err := url.Parse(target)
	if err != nil || proxyURL.Host == "" {
		return Result{}
	}

	// One transport per probe: no connection reuse across relays.
	transport := &http.Transport{
		Proxy:                 http.ProxyURL(proxyURL),
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   p.timeout,
		ResponseHeaderTimeout: p.timeout,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: p.timeout}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.echoURL, nil)
	if err != nil {
		return Result{}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return Result{}
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxEchoBodySize)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return Result{}
	}

	var echo struct {
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(body).Decode(&echo); err != nil {
		return Result{}
	}
	identity := strings.TrimSpace(echo.Origin)
	if identity == "" {
		return Result{}
	}
	return Result{Reachable: true, Identity: identity}
}
