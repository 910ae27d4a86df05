package proxy

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// DefaultTimeout bounds a single platform request.
const DefaultTimeout = 60 * time.Second

// ConnectionConfig is an immutable description of how one publish attempt
// reaches the network. The zero value is a direct connection with the
// default timeout.
type ConnectionConfig struct {
	proxyURL *url.URL
	proxyID  string
	timeout  time.Duration
}

// Direct returns a config that bypasses any proxy.
func Direct(timeout time.Duration) ConnectionConfig {
	return ConnectionConfig{timeout: timeout}
}

// Via returns a config routed through p. A nil or malformed proxy yields a
// direct config.
func Via(p *Proxy, timeout time.Duration) ConnectionConfig {
	if p == nil {
		return Direct(timeout)
	}
	u, err := p.URL()
	if err != nil {
		return Direct(timeout)
	}
	return ConnectionConfig{proxyURL: u, proxyID: p.ID, timeout: timeout}
}

// UsesProxy reports whether traffic goes through a proxy.
func (c ConnectionConfig) UsesProxy() bool { return c.proxyURL != nil }

// ProxyID is the id of the proxy in use, or "".
func (c ConnectionConfig) ProxyID() string { return c.proxyID }

// Timeout is the per-request timeout.
func (c ConnectionConfig) Timeout() time.Duration {
	if c.timeout <= 0 {
		return DefaultTimeout
	}
	return c.timeout
}

// Redacted renders the proxy address without credentials, for logs.
func (c ConnectionConfig) Redacted() string {
	if c.proxyURL == nil {
		return "direct"
	}
	return c.proxyURL.Redacted()
}

// WithTimeout returns a copy with a different timeout.
func (c ConnectionConfig) WithTimeout(d time.Duration) ConnectionConfig {
	c.timeout = d
	return c
}

// HTTPClient builds an http.Client honouring the config. Every call returns
// a fresh client with its own transport.
func (c ConnectionConfig) HTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext

	if c.proxyURL != nil {
		switch c.proxyURL.Scheme {
		case string(SchemeSOCKS5):
			if d, err := xproxy.FromURL(c.proxyURL, dialer); err == nil {
				transport.DialContext = contextDialer(d)
			}
		default:
			transport.Proxy = http.ProxyURL(c.proxyURL)
		}
	}
	return &http.Client{Transport: transport, Timeout: c.Timeout()}
}

func contextDialer(d xproxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(xproxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
