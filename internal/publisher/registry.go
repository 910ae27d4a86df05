package publisher

import (
	"github.com/ignite/social-scheduler/internal/domain"
)

// Platform describes one supported provider/type combination.
type Platform struct {
	Provider domain.Provider    `json:"provider"`
	Type     domain.ChannelType `json:"type"`
	Adapter  string             `json:"adapter"`
}

var (
	knownProviders = []domain.Provider{
		domain.ProviderMeta,
		domain.ProviderGoogle,
		domain.ProviderTikTok,
	}
	knownChannelTypes = []domain.ChannelType{
		domain.ChannelFacebookPage,
		domain.ChannelFacebookProfile,
		domain.ChannelInstagramBusiness,
		domain.ChannelYouTube,
		domain.ChannelTikTokProfile,
	}
)

// Registry holds adapters in priority order. The first adapter whose
// Supports returns true wins.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry over the given adapters, in order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Resolve returns the adapter for a provider/type, or false when none
// supports it.
func (r *Registry) Resolve(provider domain.Provider, channelType domain.ChannelType) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Supports(provider, channelType) {
			return a, true
		}
	}
	return nil, false
}

// IsSupported reports whether any adapter can post to the channel.
func (r *Registry) IsSupported(channel domain.Channel) bool {
	_, ok := r.Resolve(channel.Provider, channel.Type)
	return ok
}

// SupportedPlatforms lists every known provider/type pair an adapter accepts.
func (r *Registry) SupportedPlatforms() []Platform {
	var out []Platform
	for _, p := range knownProviders {
		for _, t := range knownChannelTypes {
			if a, ok := r.Resolve(p, t); ok {
				out = append(out, Platform{Provider: p, Type: t, Adapter: a.Name()})
			}
		}
	}
	return out
}
