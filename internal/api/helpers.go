package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// writeServiceError maps domain errors onto HTTP statuses. Claim conflicts
// carry enough detail for the caller to tell "taken by someone else" from
// "wrong state".
func writeServiceError(w http.ResponseWriter, err error) {
	var claimed *review.AlreadyClaimedError
	var owner *review.NotClaimOwnerError
	var transition *review.InvalidStateTransitionError

	switch {
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "no such resource")
	case errors.Is(err, store.ErrDuplicate):
		httpError(w, http.StatusConflict, "duplicate", "resource already exists")
	case errors.As(err, &claimed):
		httpError(w, http.StatusConflict, "already_claimed", "item %s is claimed by %s", claimed.ItemID, claimed.ClaimedBy)
	case errors.As(err, &owner):
		httpError(w, http.StatusForbidden, "not_claim_owner", "item %s is claimed by %s", owner.ItemID, owner.Owner)
	case errors.As(err, &transition):
		httpError(w, http.StatusConflict, "invalid_state", "item %s cannot %s from %s", transition.ItemID, transition.Op, transition.From)
	default:
		zap.L().Error("request failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
