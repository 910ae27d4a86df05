package publisher

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// Orchestrator publishes a content item to its channels, applying the proxy
// retry policy around each adapter attempt.
type Orchestrator struct {
	registry *Registry
	proxies  proxy.Provider
}

// NewOrchestrator creates an orchestrator. A nil proxy provider means every
// channel posts directly.
func NewOrchestrator(registry *Registry, proxies proxy.Provider) *Orchestrator {
	if proxies == nil {
		proxies = proxy.NewService(nil, nil, proxy.DefaultTimeout, true)
	}
	return &Orchestrator{registry: registry, proxies: proxies}
}

// Registry exposes the adapter registry for introspection.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// PostToChannels posts payload to every channel and returns the per-channel
// outcomes keyed by channel id. A failure on one channel never blocks the
// others.
func (o *Orchestrator) PostToChannels(ctx context.Context, item *domain.ContentItem, channels []domain.Channel, payload domain.Payload) domain.ExternalPostIDs {
	results := make(domain.ExternalPostIDs, len(channels))
	for _, ch := range channels {
		start := time.Now()
		res := o.PostToChannel(ctx, ch, payload, ch.UserID)
		results[ch.ID] = ch.Result(res)

		fields := []interface{}{
			"content_item_id", item.ID,
			"channel_id", ch.ID,
			"provider", string(ch.Provider),
			"type", string(ch.Type),
			"success", res.Success,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if res.Success {
			logger.Info("channel publish succeeded", append(fields, "external_post_id", res.ExternalPostID)...)
		} else {
			logger.Warn("channel publish failed", append(fields, "error", res.Error, "error_code", string(res.ErrorCode))...)
		}
	}
	return results
}

// PostToChannel makes at most two adapter attempts: one over the channel's
// proxy (if any) and, when that fails and the proxy provider allows it, one
// over a direct connection.
func (o *Orchestrator) PostToChannel(ctx context.Context, channel domain.Channel, payload domain.Payload, userID string) domain.PostResult {
	adapter, ok := o.registry.Resolve(channel.Provider, channel.Type)
	if !ok {
		return domain.Failed(
			fmt.Sprintf("no adapter for provider %q type %q", channel.Provider, channel.Type),
			domain.ErrUnsupportedPlatform)
	}

	p, err := o.proxies.ProxyForChannel(ctx, channel)
	if err != nil {
		logger.Warn("proxy lookup failed, posting direct", "channel_id", channel.ID, "error", err.Error())
		p = nil
	}
	conn := o.proxies.ConnectionConfig(p)

	res := attempt(ctx, adapter, channel, payload, conn)
	if res.Success || !conn.UsesProxy() || res.ErrorCode == domain.ErrCancelled {
		return res
	}

	o.proxies.RecordFailure(ctx, userID, p)
	if o.proxies.ShouldStopOnFailure(ctx, userID) {
		logger.Warn("proxied publish failed, direct retry disallowed",
			"channel_id", channel.ID, "user_id", userID, "proxy", conn.Redacted(), "error_code", string(res.ErrorCode))
		stopped := domain.Failed(fmt.Sprintf("proxy attempt failed: %s", res.Error), domain.ErrProxyFailureStop)
		stopped.Metadata = map[string]interface{}{"proxy_error_code": string(res.ErrorCode)}
		return stopped
	}

	logger.Info("proxied publish failed, retrying direct",
		"channel_id", channel.ID, "proxy", conn.Redacted(), "error_code", string(res.ErrorCode))
	retry := attempt(ctx, adapter, channel, payload, o.proxies.ConnectionConfig(nil))
	if retry.Metadata == nil {
		retry.Metadata = map[string]interface{}{}
	}
	retry.Metadata["direct_fallback"] = true
	return retry
}

// attempt runs one adapter call, converting a panic into an EXCEPTION result.
func attempt(ctx context.Context, adapter Adapter, channel domain.Channel, payload domain.Payload, conn proxy.ConnectionConfig) (res domain.PostResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("adapter panic",
				"adapter", adapter.Name(), "channel_id", channel.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			res = domain.Failed(fmt.Sprintf("%s adapter panic: %v", adapter.Name(), r), domain.ErrException)
		}
	}()
	return adapter.Post(ctx, channel, payload, conn)
}
