package api

import (
	"context"
	"net/http"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/httputil"
	"github.com/ignite/social-scheduler/internal/publisher"
	"github.com/ignite/social-scheduler/internal/worker"
)

// SchedulerControl is the scheduler surface the API exposes.
type SchedulerControl interface {
	RunOnce(ctx context.Context) (worker.PassResult, error)
	GetStats() worker.SchedulerStats
}

// PlatformCatalog answers which provider/channel types can be posted to.
type PlatformCatalog interface {
	SupportedPlatforms() []publisher.Platform
	Resolve(provider domain.Provider, channelType domain.ChannelType) (publisher.Adapter, bool)
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	scheduler SchedulerControl
	platforms PlatformCatalog
	publish   func() worker.PublishStats
}

// NewHandlers creates handlers. publishStats may be nil when this process
// does not execute publish tasks.
func NewHandlers(scheduler SchedulerControl, platforms PlatformCatalog, publishStats func() worker.PublishStats) *Handlers {
	return &Handlers{scheduler: scheduler, platforms: platforms, publish: publishStats}
}

// GetSchedulerStats returns the scheduler counters.
//
//	GET /api/scheduler/stats
func (h *Handlers) GetSchedulerStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"scheduler": h.scheduler.GetStats()}
	if h.publish != nil {
		resp["publisher"] = h.publish()
	}
	httputil.OK(w, resp)
}

// RunScheduler runs one scheduler pass synchronously and returns its outcomes.
//
//	POST /api/scheduler/run
func (h *Handlers) RunScheduler(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ListPlatforms returns every supported provider/channel type pair.
//
//	GET /api/platforms
func (h *Handlers) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms := h.platforms.SupportedPlatforms()
	httputil.OK(w, map[string]interface{}{
		"platforms": platforms,
		"total":     len(platforms),
	})
}

// CheckPlatform reports whether an adapter accepts a provider/type pair.
//
//	GET /api/platforms/supported?provider=meta&type=facebook_page
func (h *Handlers) CheckPlatform(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	channelType := r.URL.Query().Get("type")
	if provider == "" || channelType == "" {
		httputil.BadRequest(w, "provider and type are required")
		return
	}

	resp := map[string]interface{}{
		"provider":  provider,
		"type":      channelType,
		"supported": false,
	}
	if a, ok := h.platforms.Resolve(domain.Provider(provider), domain.ChannelType(channelType)); ok {
		resp["supported"] = true
		resp["adapter"] = a.Name()
	}
	httputil.OK(w, resp)
}
