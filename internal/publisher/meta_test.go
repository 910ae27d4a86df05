package publisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/social-scheduler/internal/domain"
)

func newMeta(f *fakePlatform) *MetaAdapter {
	return NewMetaAdapter(f.URL, NewMediaLoader(nil, 1), fastPoller(30))
}

func pageChannel() domain.Channel {
	return domain.Channel{
		ID: "ch-page", UserID: "u1", Provider: domain.ProviderMeta, Type: domain.ChannelFacebookPage,
		Name: "Page", ExternalID: "page1", AccessToken: "page-token-123456",
	}
}

func TestMetaAdapter_Supports(t *testing.T) {
	a := NewMetaAdapter("", nil, nil)
	assert.True(t, a.Supports(domain.ProviderMeta, domain.ChannelFacebookPage))
	assert.True(t, a.Supports(domain.ProviderMeta, domain.ChannelFacebookProfile))
	assert.True(t, a.Supports(domain.ProviderMeta, domain.ChannelInstagramBusiness))
	assert.False(t, a.Supports(domain.ProviderMeta, domain.ChannelYouTube))
	assert.False(t, a.Supports(domain.ProviderGoogle, domain.ChannelFacebookPage))
	assert.Equal(t, DefaultGraphBaseURL, a.baseURL)
}

func TestMetaAdapter_NoToken(t *testing.T) {
	f := newFakePlatform(t)
	ch := pageChannel()
	ch.AccessToken = ""

	res := newMeta(f).Post(context.Background(), ch, domain.Payload{Caption: "hi"}, direct())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrNoToken, res.ErrorCode)
	assert.Zero(t, f.total())
}

func TestMetaAdapter_FeedPost(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/feed", jsonReply(`{"id":"page1_999"}`))

	payload := domain.Payload{Caption: "Launch day", Hashtags: []string{"go", "#social"}}
	res := newMeta(f).Post(context.Background(), pageChannel(), payload, direct())

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "page1_999", res.ExternalPostID)
	req := f.last("POST", "/page1/feed")
	assert.Equal(t, "Launch day\n\n#go #social", req.Form.Get("message"))
	assert.Equal(t, "page-token-123456", req.Form.Get("access_token"))
}

func TestMetaAdapter_RemotePhotoAndVideo(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/photos", jsonReply(`{"id":"photo1","post_id":"page1_photo1"}`))
	f.handle("POST /page1/videos", jsonReply(`{"id":"video1"}`))
	a := newMeta(f)

	res := a.Post(context.Background(), pageChannel(),
		domain.Payload{Caption: "pic", MediaURLs: []string{"https://cdn.example.com/p.jpg"}}, direct())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "page1_photo1", res.ExternalPostID, "post_id preferred over object id")
	photo := f.last("POST", "/page1/photos")
	assert.Equal(t, "https://cdn.example.com/p.jpg", photo.Form.Get("url"))
	assert.Equal(t, "pic", photo.Form.Get("caption"))

	res = a.Post(context.Background(), pageChannel(),
		domain.Payload{Caption: "vid", MediaURLs: []string{"https://cdn.example.com/v.mp4"}}, direct())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "video1", res.ExternalPostID)
	video := f.last("POST", "/page1/videos")
	assert.Equal(t, "https://cdn.example.com/v.mp4", video.Form.Get("file_url"))
	assert.Equal(t, "vid", video.Form.Get("description"))
}

func TestMetaAdapter_LocalPhotoMultipart(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/photos", jsonReply(`{"id":"photo2","post_id":"page1_photo2"}`))

	path := filepath.Join(t.TempDir(), "local.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	res := newMeta(f).Post(context.Background(), pageChannel(),
		domain.Payload{Caption: "local", MediaURLs: []string{path}}, direct())
	require.True(t, res.Success, res.Error)

	req := f.last("POST", "/page1/photos")
	assert.Equal(t, "jpeg-bytes", string(req.Body))
	assert.Equal(t, "local", req.Form.Get("caption"))
	assert.Empty(t, req.Form.Get("url"))
}

func TestMetaAdapter_LocalFileMissing(t *testing.T) {
	f := newFakePlatform(t)
	res := newMeta(f).Post(context.Background(), pageChannel(),
		domain.Payload{MediaURLs: []string{filepath.Join(t.TempDir(), "gone.jpg")}}, direct())
	assert.Equal(t, domain.ErrLocalFileNotFound, res.ErrorCode)
	assert.Zero(t, f.total())
}

func TestMetaAdapter_GraphErrorSurfaced(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/feed", jsonStatus(400,
		`{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`))

	res := newMeta(f).Post(context.Background(), pageChannel(), domain.Payload{Caption: "x"}, direct())
	assert.False(t, res.Success)
	assert.Equal(t, "Error validating access token", res.Error)
	assert.Equal(t, domain.ErrorCode("190"), res.ErrorCode)
}

func TestMetaAdapter_GraphCodeWithoutMessage(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/feed", jsonStatus(400, `{"error":{"code":368}}`))

	res := newMeta(f).Post(context.Background(), pageChannel(), domain.Payload{Caption: "x"}, direct())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCode("368"), res.ErrorCode)
	assert.Contains(t, res.Error, "status 400")
}

func TestMetaAdapter_UnreadableSuccessBody(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /page1/feed", jsonReply(`<html>ok</html>`))

	res := newMeta(f).Post(context.Background(), pageChannel(), domain.Payload{Caption: "x"}, direct())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrHTTP, res.ErrorCode)
	assert.Contains(t, res.Error, "decoding graph response")
}

func TestMetaAdapter_ProfileDefaultsToMe(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST /me/feed", jsonReply(`{"id":"me_1"}`))

	ch := pageChannel()
	ch.Type = domain.ChannelFacebookProfile
	ch.ExternalID = ""
	res := newMeta(f).Post(context.Background(), ch, domain.Payload{Caption: "x"}, direct())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "me_1", res.ExternalPostID)
}
