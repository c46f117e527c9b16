package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/request"
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/middleware"
	"github.com/Strob0t/sitecms/internal/service"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Content     *service.ContentService
	Requests    *service.RequestService
	Auth        *service.AuthService
	Checks      []HealthCheck
	DefaultSite string
	BodyLimit   int64
	Version     string
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return 1 << 20
}

// Health reports the state of every dependency. Any failing check turns the
// response into a 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for _, c := range h.Checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// --- Content ---

// ListContent handles GET /api/v1/sites/{siteID}/content/{kind}
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	items, err := h.Content.List(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r), kind)
	if err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateContent handles POST /api/v1/sites/{siteID}/content/{kind}
func (h *Handlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	handleCreate(h.bodyLimit(), func(ctx context.Context, id *user.Identity, siteID string, req content.CreateRequest) (*content.Item, error) {
		return h.Content.Create(ctx, id, siteID, kind, req)
	})(w, r)
}

// DeleteContent handles DELETE /api/v1/sites/{siteID}/content/{kind}/{id}?confirm=true
func (h *Handlers) DeleteContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	err := h.Content.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r), kind, urlParam(r, "id"), confirmed)
	if err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Service requests ---

// SubmitRequest handles POST /api/v1/sites/{siteID}/requests
func (h *Handlers) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.bodyLimit(), h.Requests.Submit)(w, r)
}

// ListRequests handles GET /api/v1/sites/{siteID}/requests
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	handleList(h.Requests.List, "site not found")(w, r)
}

// RequestAction handles POST /api/v1/sites/{siteID}/requests/{id}/{action}
// where action is the one offered on the request (take, complete).
func (h *Handlers) RequestAction(w http.ResponseWriter, r *http.Request) {
	action := request.ActionName(urlParam(r, "action"))
	handleAction(func(ctx context.Context, id *user.Identity, siteID, requestID string) (*request.Request, error) {
		return h.Requests.Act(ctx, id, siteID, requestID, action)
	}, "request not found")(w, r)
}

// Summary handles GET /api/v1/sites/{siteID}/admin/summary
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Requests.Summary(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r))
	if err != nil {
		writeDomainError(w, err, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
