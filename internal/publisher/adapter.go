// Package publisher posts content to social platforms.
//
// Each platform family is an Adapter:
//   - meta.go:           Facebook pages/profiles via the Graph API
//   - meta_instagram.go: Instagram business accounts (container, poll, publish)
//   - youtube.go:        YouTube Data API v3 resumable upload
//   - tiktok.go:         TikTok Content Posting API, pull-from-URL then poll
//
// The Registry resolves an adapter for a channel in a fixed priority order,
// and the Orchestrator applies the proxy retry policy around each attempt.
// Adapters never return Go errors: every outcome is a domain.PostResult.
package publisher

import (
	"context"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// Adapter publishes a payload to one platform family.
type Adapter interface {
	// Name identifies the adapter in logs and introspection.
	Name() string
	// Supports reports whether the adapter can post to the channel kind.
	Supports(provider domain.Provider, channelType domain.ChannelType) bool
	// Post runs the platform protocol once over the given connection.
	Post(ctx context.Context, channel domain.Channel, payload domain.Payload, conn proxy.ConnectionConfig) domain.PostResult
}
