package publisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/storage"
)

func TestClassifyMedia(t *testing.T) {
	tests := []struct {
		ref  string
		want MediaLocation
	}{
		{"https://cdn.example.com/a.jpg", MediaRemote},
		{"http://images.example.org/v.mp4?sig=1", MediaRemote},
		{"https://8.8.8.8/a.jpg", MediaRemote},
		{"http://localhost:8080/a.jpg", MediaLocal},
		{"http://media.localhost/a.jpg", MediaLocal},
		{"http://127.0.0.1/a.jpg", MediaLocal},
		{"http://10.1.2.3/a.jpg", MediaLocal},
		{"http://192.168.0.10/a.mp4", MediaLocal},
		{"http://172.16.5.5/a.mp4", MediaLocal},
		{"http://[::1]/a.mp4", MediaLocal},
		{"file:///srv/media/a.jpg", MediaLocal},
		{"/srv/media/a.jpg", MediaLocal},
		{"s3://bucket/a.mp4", MediaLocal},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMedia(tt.ref))
		})
	}
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo(domain.Payload{MediaURLs: []string{"https://x.com/clip.MP4"}}))
	assert.True(t, IsVideo(domain.Payload{MediaURLs: []string{"https://x.com/clip.mov?token=abc"}}))
	assert.False(t, IsVideo(domain.Payload{MediaURLs: []string{"https://x.com/photo.jpg"}}))
	assert.False(t, IsVideo(domain.Payload{}))

	explicit := domain.Payload{MediaItems: []domain.MediaItem{{URL: "https://x.com/stream/123", IsVideo: true}}}
	assert.True(t, IsVideo(explicit), "explicit flag wins over a missing extension")

	thumb := domain.Payload{
		MediaItems: []domain.MediaItem{{URL: "https://x.com/thumb.mp4", IsVideo: false}},
		MediaURLs:  []string{"https://x.com/thumb.mp4"},
	}
	assert.False(t, IsVideo(thumb), "explicit is_video=false wins over a video extension")
}

func TestMediaFilename(t *testing.T) {
	assert.Equal(t, "a.jpg", mediaFilename("/srv/media/a.jpg"))
	assert.Equal(t, "v.mp4", mediaFilename("http://10.0.0.1/files/v.mp4?x=1"))
	assert.Equal(t, "media", mediaFilename("http://10.0.0.1/"))
}

type memObjects map[string][]byte

func (m memObjects) Get(_ context.Context, ref storage.S3Ref) ([]byte, error) {
	data, ok := m[ref.Bucket+"/"+ref.Key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func TestMediaLoader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(local, []byte("local-bytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote-bytes"))
	}))
	defer srv.Close()

	loader := NewMediaLoader(memObjects{"media/clip.mp4": []byte("s3-bytes")}, 1)

	data, err := loader.Load(ctx, local, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "local-bytes", string(data))

	data, err = loader.Load(ctx, srv.URL+"/clip.mp4", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "remote-bytes", string(data))

	data, err = loader.Load(ctx, "s3://media/clip.mp4", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "s3-bytes", string(data))

	_, err = loader.Load(ctx, filepath.Join(dir, "nope.mp4"), srv.Client())
	assert.ErrorIs(t, err, ErrMediaNotFound)
	_, err = loader.Load(ctx, srv.URL+"/missing.mp4", srv.Client())
	assert.ErrorIs(t, err, ErrMediaNotFound)
	_, err = loader.Load(ctx, "s3://media/nope.mp4", srv.Client())
	assert.ErrorIs(t, err, ErrMediaNotFound)

	_, err = NewMediaLoader(nil, 1).Load(ctx, "s3://media/clip.mp4", srv.Client())
	assert.Error(t, err)
}
