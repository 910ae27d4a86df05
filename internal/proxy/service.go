package proxy

import (
	"context"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// Store looks up proxy assignments.
type Store interface {
	ProxyForChannel(ctx context.Context, channelID string) (*Proxy, error)
}

// Service is the default Provider: assignments from a Store, stop decisions
// from an optional RedisBreaker.
type Service struct {
	store   Store
	breaker *RedisBreaker
	timeout time.Duration
	// stopAlways makes every proxied failure final (direct fallback disabled).
	stopAlways bool
}

// NewService creates a proxy Service. store and breaker may be nil.
func NewService(store Store, breaker *RedisBreaker, timeout time.Duration, directFallback bool) *Service {
	return &Service{store: store, breaker: breaker, timeout: timeout, stopAlways: !directFallback}
}

// ProxyForChannel implements Provider.
func (s *Service) ProxyForChannel(ctx context.Context, channel domain.Channel) (*Proxy, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ProxyForChannel(ctx, channel.ID)
}

// ConnectionConfig implements Provider.
func (s *Service) ConnectionConfig(p *Proxy) ConnectionConfig {
	return Via(p, s.timeout)
}

// ShouldStopOnFailure implements Provider.
func (s *Service) ShouldStopOnFailure(ctx context.Context, userID string) bool {
	if s.stopAlways {
		return true
	}
	if s.breaker == nil {
		return false
	}
	return s.breaker.Tripped(ctx, userID)
}

// RecordFailure implements Provider.
func (s *Service) RecordFailure(ctx context.Context, userID string, p *Proxy) {
	if s.breaker == nil {
		return
	}
	n, err := s.breaker.RecordFailure(ctx, userID)
	if err != nil {
		logger.Warn("proxy failure not recorded", "user_id", userID, "error", err.Error())
		return
	}
	proxyID := ""
	if p != nil {
		proxyID = p.ID
	}
	logger.Info("proxy failure recorded", "user_id", userID, "proxy_id", proxyID, "failures", n)
}
