package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
	"github.com/secmon-lab/riskregister/pkg/utils/errutil"
)

// maxBodySize bounds request bodies
const maxBodySize = 1 << 20

type errorResponse struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Values  map[string]any  `json:"values,omitempty"`
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}

// statusOf maps an error kind to its HTTP status
func statusOf(err error) int {
	if errors.Is(err, usecase.ErrSuggestionUnavailable) {
		return http.StatusNotImplemented
	}
	switch model.KindOf(err) {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindInvalidThresholdConfiguration:
		return http.StatusUnprocessableEntity
	case model.KindAlreadyCommitted, model.KindConcurrentModification:
		return http.StatusConflict
	case model.KindGenerationExhausted:
		return http.StatusServiceUnavailable
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// handleError renders err with the status of its kind
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, statusOf(err))
}

// writeError renders err as an error body. Internal errors are reported
// and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	resp := errorResponse{Kind: model.KindOf(err), Message: err.Error()}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented && status != http.StatusServiceUnavailable {
		_ = errutil.Handle(r.Context(), err, "request failed")
		resp.Message = "internal error"
	} else {
		var ge *goerr.Error
		if errors.As(err, &ge) && len(ge.Values()) > 0 {
			resp.Values = ge.Values()
		}
	}
	writeJSON(r.Context(), w, status, resp)
}

// decodeJSON reads the request body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(model.ErrValidation, "malformed request body", goerr.V("reason", err.Error()))
	}
	return nil
}

func orgID(r *http.Request) string {
	return chi.URLParam(r, "orgID")
}

func periodParam(r *http.Request, name string) (types.Period, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		raw = r.URL.Query().Get(name)
	}
	p, err := types.ParsePeriod(raw)
	if err != nil {
		return types.Period{}, goerr.Wrap(model.ErrValidation, "invalid period", goerr.V(model.PeriodKey, raw))
	}
	return p, nil
}

// limitParam reads the optional "limit" query value; 0 means no limit
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, goerr.Wrap(model.ErrValidation, "limit must be a non-negative integer", goerr.V("limit", raw))
	}
	return n, nil
}
