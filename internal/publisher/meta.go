package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/poll"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// DefaultGraphBaseURL is the Graph API version this adapter speaks.
const DefaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// MetaAdapter posts to Facebook pages/profiles and Instagram business
// accounts through the Graph API.
type MetaAdapter struct {
	baseURL     string
	media       *MediaLoader
	igContainer *poll.Poller
}

// NewMetaAdapter creates a Meta adapter. containerPoll paces Instagram video
// container status checks.
func NewMetaAdapter(baseURL string, media *MediaLoader, containerPoll *poll.Poller) *MetaAdapter {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if containerPoll == nil {
		containerPoll = poll.New(DefaultInstagramPollInterval, DefaultInstagramPollAttempts)
	}
	return &MetaAdapter{
		baseURL:     strings.TrimRight(baseURL, "/"),
		media:       media,
		igContainer: containerPoll,
	}
}

// Name implements Adapter.
func (a *MetaAdapter) Name() string { return "meta" }

// Supports implements Adapter.
func (a *MetaAdapter) Supports(provider domain.Provider, channelType domain.ChannelType) bool {
	if provider != domain.ProviderMeta {
		return false
	}
	switch channelType {
	case domain.ChannelFacebookPage, domain.ChannelFacebookProfile, domain.ChannelInstagramBusiness:
		return true
	}
	return false
}

// Post implements Adapter.
func (a *MetaAdapter) Post(ctx context.Context, channel domain.Channel, payload domain.Payload, conn proxy.ConnectionConfig) domain.PostResult {
	if channel.AccessToken == "" {
		return domain.Failed("channel has no access token", domain.ErrNoToken)
	}
	client := conn.HTTPClient()
	if channel.Type == domain.ChannelInstagramBusiness {
		return a.postInstagram(ctx, client, channel, payload)
	}
	return a.postFacebook(ctx, client, channel, payload)
}

func (a *MetaAdapter) postFacebook(ctx context.Context, client *http.Client, channel domain.Channel, payload domain.Payload) domain.PostResult {
	target := channel.ExternalID
	if target == "" {
		target = "me"
	}
	message := payload.FullCaption()

	if !payload.HasMedia() {
		form := url.Values{"message": {message}, "access_token": {channel.AccessToken}}
		return a.graphPost(ctx, client, target+"/feed", form, "feed post")
	}

	mediaURL := payload.FirstMediaURL()
	video := IsVideo(payload)
	edge, textField, urlField := "photos", "caption", "url"
	if video {
		edge, textField, urlField = "videos", "description", "file_url"
	}

	if ClassifyMedia(mediaURL) == MediaRemote {
		form := url.Values{
			urlField:       {mediaURL},
			textField:      {message},
			"access_token": {channel.AccessToken},
		}
		return a.graphPost(ctx, client, target+"/"+edge, form, edge+" post")
	}

	data, err := a.media.Load(ctx, mediaURL, client)
	if err != nil {
		return mediaLoadFailure(err)
	}
	fields := map[string]string{textField: message, "access_token": channel.AccessToken}
	return a.graphUpload(ctx, client, target+"/"+edge, fields, mediaFilename(mediaURL), data, edge+" upload")
}

// graphError is the Graph API error envelope.
type graphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

type graphResult struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	URI    string      `json:"uri"`
	Status string      `json:"status_code"`
	Error  *graphError `json:"error"`
}

// graphFailure surfaces a Graph error, falling back to fallback as the code
// when the API gave none.
func graphFailure(step string, res apiResponse, gerr *graphError, fallback domain.ErrorCode) domain.PostResult {
	if gerr == nil || (gerr.Message == "" && gerr.Code == 0) {
		return domain.Failed(fmt.Sprintf("%s failed with status %d", step, res.Status), fallback)
	}
	code := fallback
	if gerr.Code != 0 {
		code = domain.ErrorCode(strconv.Itoa(gerr.Code))
	}
	msg := gerr.Message
	if msg == "" {
		msg = fmt.Sprintf("%s failed with status %d", step, res.Status)
	}
	return domain.Failed(msg, code)
}

func decodeGraph(res apiResponse) (graphResult, error) {
	var out graphResult
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return out, fmt.Errorf("decoding graph response: %w", err)
	}
	return out, nil
}

// graphCall posts a prepared request and decodes the Graph envelope. ok is
// false when a failure result was produced.
func (a *MetaAdapter) graphCall(ctx context.Context, client *http.Client, req *http.Request, step string, fallback domain.ErrorCode) (graphResult, domain.PostResult, bool) {
	res, err := do(client, req)
	if err != nil {
		return graphResult{}, transportFailure(ctx, step, err), false
	}
	out, err := decodeGraph(res)
	if !res.ok() || out.Error != nil {
		return out, graphFailure(step, res, out.Error, fallback), false
	}
	if err != nil {
		return out, domain.Failed(fmt.Sprintf("%s: %v", step, err), fallback), false
	}
	return out, domain.PostResult{}, true
}

func (a *MetaAdapter) graphPost(ctx context.Context, client *http.Client, path string, form url.Values, step string) domain.PostResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Failed(err.Error(), domain.ErrHTTP)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, failure, ok := a.graphCall(ctx, client, req, step, domain.ErrHTTP)
	if !ok {
		return failure
	}
	return facebookSuccess(out, step)
}

func (a *MetaAdapter) graphUpload(ctx context.Context, client *http.Client, path string, fields map[string]string, filename string, data []byte, step string) domain.PostResult {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return domain.Failed(err.Error(), domain.ErrUploadFailed)
		}
	}
	part, err := mw.CreateFormFile("source", filename)
	if err != nil {
		return domain.Failed(err.Error(), domain.ErrUploadFailed)
	}
	if _, err := part.Write(data); err != nil {
		return domain.Failed(err.Error(), domain.ErrUploadFailed)
	}
	if err := mw.Close(); err != nil {
		return domain.Failed(err.Error(), domain.ErrUploadFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+path, &body)
	if err != nil {
		return domain.Failed(err.Error(), domain.ErrUploadFailed)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	out, failure, ok := a.graphCall(ctx, client, req, step, domain.ErrUploadFailed)
	if !ok {
		return failure
	}
	return facebookSuccess(out, step)
}

func facebookSuccess(out graphResult, step string) domain.PostResult {
	id := out.PostID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return domain.Failed(step+" returned no id", domain.ErrNoMediaID)
	}
	log.Printf("[Meta] %s published (id: %s)", step, id)
	return domain.Succeeded(id, map[string]interface{}{"object_id": out.ID})
}

// mediaLoadFailure maps a MediaLoader error to a PostResult.
func mediaLoadFailure(err error) domain.PostResult {
	if errors.Is(err, ErrMediaNotFound) {
		return domain.Failed(err.Error(), domain.ErrLocalFileNotFound)
	}
	return domain.Failed(err.Error(), domain.ErrDownloadFailed)
}
