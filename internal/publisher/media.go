package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/httpretry"
	"github.com/ignite/social-scheduler/internal/storage"
)

// MediaLocation says whether a platform can fetch a media reference itself.
type MediaLocation int

const (
	// MediaRemote is a public http(s) URL the platform can pull.
	MediaRemote MediaLocation = iota
	// MediaLocal must be read by the worker and uploaded as bytes: file
	// paths, file:// URLs, s3:// objects, and URLs on loopback or private
	// hosts.
	MediaLocal
)

func (l MediaLocation) String() string {
	if l == MediaRemote {
		return "remote"
	}
	return "local"
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".avi": true, ".mkv": true,
	".webm": true, ".wmv": true, ".flv": true, ".3gp": true, ".mpeg": true,
	".mpg": true,
}

// ClassifyMedia decides whether ref is reachable by the platform.
func ClassifyMedia(ref string) MediaLocation {
	lower := strings.ToLower(ref)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return MediaLocal
	}
	u, err := url.Parse(ref)
	if err != nil {
		return MediaLocal
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return MediaLocal
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return MediaLocal
		}
	}
	return MediaRemote
}

// mediaExt returns the lower-cased extension of ref's path, ignoring any
// query string.
func mediaExt(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// IsVideoURL reports whether ref looks like a video by extension.
func IsVideoURL(ref string) bool {
	return videoExtensions[mediaExt(ref)]
}

// IsVideo decides whether the payload's primary media is a video. When
// media items are present the first item's flag decides; extensions are
// only sniffed for bare media URLs.
func IsVideo(p domain.Payload) bool {
	if len(p.MediaItems) > 0 && p.MediaItems[0].URL != "" {
		return p.MediaItems[0].IsVideo
	}
	return IsVideoURL(p.FirstMediaURL())
}

// mediaFilename is the upload filename for ref.
func mediaFilename(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return "media"
	}
	return name
}

// ErrMediaNotFound is returned by MediaLoader when the source does not exist.
var ErrMediaNotFound = errors.New("media not found")

// MediaLoader reads media bytes from http(s) URLs, local files and S3.
type MediaLoader struct {
	objects    storage.ObjectReader
	maxRetries int
}

// NewMediaLoader creates a loader. objects may be nil when S3 is not
// configured; s3:// references then fail to load.
func NewMediaLoader(objects storage.ObjectReader, maxRetries int) *MediaLoader {
	return &MediaLoader{objects: objects, maxRetries: maxRetries}
}

// Load reads the whole media object into memory. HTTP downloads go through
// client wrapped with retry on transient statuses.
func (m *MediaLoader) Load(ctx context.Context, ref string, client httpretry.HTTPDoer) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty media reference: %w", ErrMediaNotFound)
	}
	if s3ref, ok := storage.ParseS3URL(ref); ok {
		if m == nil || m.objects == nil {
			return nil, fmt.Errorf("s3 storage not configured for %s", ref)
		}
		data, err := m.objects.Get(ctx, s3ref)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", ref, ErrMediaNotFound)
		}
		return data, err
	}

	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return m.download(ctx, ref, client)
	}

	data, err := storage.ReadLocal(ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", storage.LocalPath(ref), ErrMediaNotFound)
	}
	return data, err
}

func (m *MediaLoader) download(ctx context.Context, ref string, client httpretry.HTTPDoer) ([]byte, error) {
	retries := 3
	if m != nil && m.maxRetries > 0 {
		retries = m.maxRetries
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := httpretry.NewRetryClient(client, retries).Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", ref, ErrMediaNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("downloading media: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading media body: %w", err)
	}
	return data, nil
}
