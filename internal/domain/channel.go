package domain

// Provider identifies the platform family that owns a channel.
type Provider string

const (
	ProviderMeta   Provider = "meta"
	ProviderGoogle Provider = "google"
	ProviderTikTok Provider = "tiktok"
)

// ChannelType identifies the kind of destination within a provider.
type ChannelType string

const (
	ChannelFacebookPage      ChannelType = "facebook_page"
	ChannelFacebookProfile   ChannelType = "facebook_profile"
	ChannelInstagramBusiness ChannelType = "instagram_business"
	ChannelYouTube           ChannelType = "youtube_channel"
	ChannelTikTokProfile     ChannelType = "tiktok_profile"
)

// Channel is a destination account or page on a platform. Channels are
// read-only to the scheduler; token refresh happens elsewhere.
type Channel struct {
	ID          string      `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	Provider    Provider    `json:"provider" db:"provider"`
	Type        ChannelType `json:"type" db:"type"`
	Name        string      `json:"name" db:"name"`
	ExternalID  string      `json:"external_id" db:"external_id"`
	AccessToken string      `json:"-" db:"access_token"`
}

// Result builds the stored per-channel record for a publish outcome.
func (c Channel) Result(r PostResult) ChannelResult {
	return ChannelResult{
		Provider:       c.Provider,
		Type:           c.Type,
		Name:           c.Name,
		Success:        r.Success,
		ExternalPostID: r.ExternalPostID,
		Error:          r.Error,
		ErrorCode:      r.ErrorCode,
	}
}
