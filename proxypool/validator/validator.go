package validator

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"

	"proxypool_nexus/internal/shared/logger"
	"proxypool_nexus/proxypool/model"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

	// maxRedirects bounds how many redirects a probe will follow.
	maxRedirects = 10

	// maxBodyBytes bounds how much of the probe response is read when
	// searching for the marker.
	maxBodyBytes = 256 * 1024
)

// Validator classifies candidates by routing one real HTTP request through
// them against the probe endpoint. A candidate is valid only if the probe
// comes back with status 200 and a body containing the configured marker.
// Every failure mode is a result, never an error: a single bad candidate
// must not abort a batch.
type Validator struct {
	probeURL string
	marker   string
	timeout  time.Duration
}

// New creates a validator probing probeURL and expecting marker in the body.
func New(probeURL, marker string, timeout time.Duration) *Validator {
	return &Validator{
		probeURL: probeURL,
		marker:   marker,
		timeout:  timeout,
	}
}

// Validate probes the candidate as a forward proxy for the given protocol
// tag ("http" or "socks5") and reports whether it routed the probe
// successfully.
func (v *Validator) Validate(c *model.Candidate, protocol string) bool {
	l := logger.WithComponent("ProxyPool/Validator")

	var client *http.Client
	var err error
	switch protocol {
	case "socks5":
		client, err = v.socks5Client(c)
	default:
		client, err = v.httpProxyClient(c)
	}
	if err != nil {
		l.Debug().Err(err).Str("candidate", c.Key()).Msg("Failed to build probe client.")
		return false
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequest(http.MethodGet, v.probeURL, nil)
	if err != nil {
		l.Debug().Err(err).Str("candidate", c.Key()).Msg("Failed to create probe request.")
		return false
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// Any status is read, not thrown; only an exact 200 plus the marker
	// counts as valid.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}
	return strings.Contains(string(body), v.marker)
}

// httpProxyClient builds a client routing through the candidate as an HTTP
// forward proxy, with basic auth when credentials are present.
func (v *Validator) httpProxyClient(c *model.Candidate) (*http.Client, error) {
	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.Username != "" {
		proxyURL.User = url.UserPassword(c.Username, c.Password)
	}

	dialer := &net.Dialer{
		Timeout:   v.timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		IdleConnTimeout:       v.timeout,
		TLSHandshakeTimeout:   v.timeout / 2,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       v.timeout,
		CheckRedirect: boundedRedirects,
	}, nil
}

// socks5Client builds a client routing through the candidate as a SOCKS5
// proxy.
func (v *Validator) socks5Client(c *model.Candidate) (*http.Client, error) {
	var auth *xproxy.Auth
	if c.Username != "" {
		auth = &xproxy.Auth{User: c.Username, Password: c.Password}
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	dialer, err := xproxy.SOCKS5("tcp", addr, auth, &net.Dialer{Timeout: v.timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(xproxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		IdleConnTimeout: v.timeout,
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       v.timeout,
		CheckRedirect: boundedRedirects,
	}, nil
}

func boundedRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}
