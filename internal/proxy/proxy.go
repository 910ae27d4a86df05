// Package proxy supplies per-channel outbound connection settings and the
// stop-or-retry decision applied when a proxied publish attempt fails.
//
// Proxy credentials are provisioned elsewhere; this package only reads the
// assignment for a channel and counts failures per user.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ignite/social-scheduler/internal/domain"
)

// Scheme is the proxy protocol.
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeHTTPS  Scheme = "https"
	SchemeSOCKS5 Scheme = "socks5"
)

// Proxy is an outbound proxy assigned to a channel.
type Proxy struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	Scheme   Scheme `json:"scheme" db:"scheme"`
	Host     string `json:"host" db:"host"`
	Port     int    `json:"port" db:"port"`
	Username string `json:"username,omitempty" db:"username"`
	Password string `json:"-" db:"password"`
}

// URL renders the proxy as a URL including credentials.
func (p *Proxy) URL() (*url.URL, error) {
	scheme := p.Scheme
	if scheme == "" {
		scheme = SchemeHTTP
	}
	switch scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeSOCKS5:
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", scheme)
	}
	if p.Host == "" || p.Port <= 0 {
		return nil, fmt.Errorf("proxy %s: missing host or port", p.ID)
	}
	u := &url.URL{
		Scheme: string(scheme),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u, nil
}

// Provider is consulted by the publish orchestrator for every channel attempt.
type Provider interface {
	// ProxyForChannel returns the proxy assigned to the channel, or nil when
	// the channel posts over a direct connection.
	ProxyForChannel(ctx context.Context, channel domain.Channel) (*Proxy, error)
	// ConnectionConfig builds the connection settings for p (nil = direct).
	ConnectionConfig(p *Proxy) ConnectionConfig
	// ShouldStopOnFailure reports whether a failed proxied attempt must not
	// be retried over a direct connection for this user.
	ShouldStopOnFailure(ctx context.Context, userID string) bool
	// RecordFailure notes a failed proxied attempt for the user.
	RecordFailure(ctx context.Context, userID string, p *Proxy)
}
