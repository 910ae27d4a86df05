package publisher

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/social-scheduler/internal/pkg/poll"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// recordedRequest captures what a fake platform received.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Form   url.Values
	Body   []byte
}

// fakePlatform is an httptest server that records every request and answers
// through a handler keyed by "METHOD /path".
type fakePlatform struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	f := &fakePlatform{routes: map[string]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakePlatform) handle(pattern string, h http.HandlerFunc) {
	f.routes[pattern] = h
}

func (f *fakePlatform) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
	ct := r.Header.Get("Content-Type")
	switch {
	case ct == "application/x-www-form-urlencoded":
		r.ParseForm()
		rec.Form = r.PostForm
	case strings.HasPrefix(ct, "multipart/form-data"):
		r.ParseMultipartForm(10 << 20)
		rec.Form = url.Values(r.MultipartForm.Value)
		if fh, ok := r.MultipartForm.File["source"]; ok && len(fh) > 0 {
			if file, err := fh[0].Open(); err == nil {
				rec.Body, _ = io.ReadAll(file)
				file.Close()
			}
		}
	default:
		rec.Body, _ = io.ReadAll(r.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if h, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	http.NotFound(w, r)
}

func (f *fakePlatform) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakePlatform) last(method, path string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return f.requests[i]
		}
	}
	return recordedRequest{}
}

func (f *fakePlatform) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func jsonStatus(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

// sequence replies with bodies in order, repeating the last one.
func sequence(bodies ...string) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		body := bodies[i]
		if i < len(bodies)-1 {
			i++
		}
		mu.Unlock()
		jsonReply(body)(w, r)
	}
}

func fastPoller(attempts int) *poll.Poller {
	return &poll.Poller{Interval: time.Second, MaxAttempts: attempts, Sleeper: poll.NoSleep}
}

func direct() proxy.ConnectionConfig { return proxy.Direct(5 * time.Second) }
