package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/docpipe/internal/auth"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/store"
)

func handleListQueue(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		filter := store.QueueFilter{
			Status: model.QueueStatus(r.URL.Query().Get("status")),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", raw)
				return
			}
			filter.Limit = limit
		}

		items, err := deps.Reviews.List(r.Context(), tenantID, filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// queueAction reads the acting user and applies op to the item.
func queueAction(deps Deps, op func(r *http.Request, tenantID, itemID, user string) (*model.ReviewQueueItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		var req struct {
			User string `json:"user"`
		}
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.User == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user is required")
			return
		}

		item, err := op(r, tenantID, chi.URLParam(r, "id"), req.User)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func handleClaim(deps Deps) http.HandlerFunc {
	return queueAction(deps, func(r *http.Request, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
		return deps.Reviews.Claim(r.Context(), tenantID, itemID, user)
	})
}

func handleComplete(deps Deps) http.HandlerFunc {
	return queueAction(deps, func(r *http.Request, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
		return deps.Reviews.Complete(r.Context(), tenantID, itemID, user)
	})
}

func handleSkip(deps Deps) http.HandlerFunc {
	return queueAction(deps, func(r *http.Request, tenantID, itemID, user string) (*model.ReviewQueueItem, error) {
		return deps.Reviews.Skip(r.Context(), tenantID, itemID, user)
	})
}
