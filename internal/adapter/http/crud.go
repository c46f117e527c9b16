package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/middleware"
)

// ---------------------------------------------------------------------------
// Generic site-scoped handler factories
// ---------------------------------------------------------------------------

// handleList creates a handler that lists the resources of the request's
// site and returns them as a JSON array.
func handleList[T any](listFn func(ctx context.Context, id *user.Identity, siteID string) ([]T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := listFn(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r))
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleCreate creates a handler that decodes a JSON body and creates a
// resource on the request's site.
func handleCreate[Req any, Res any](bodyLimit int64, createFn func(ctx context.Context, id *user.Identity, siteID string, req Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r), req)
		if err != nil {
			writeDomainError(w, err, "creation failed")
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleAction creates a handler that applies an action to the resource
// identified by URL param "id" on the request's site.
func handleAction[Res any](actionFn func(ctx context.Context, id *user.Identity, siteID, resourceID string) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := actionFn(r.Context(), middleware.IdentityFromContext(r.Context()), siteOf(r), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
