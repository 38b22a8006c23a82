package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

// transitionRequest moves an alert or a breach to another lifecycle state
type transitionRequest struct {
	State types.LifecycleState `json:"state"`
	Actor string               `json:"actor"`
	Note  string               `json:"note"`
}

func (s *Server) listIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := s.uc.Indicator.ListIndicators(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, indicators)
}

func (s *Server) createIndicator(w http.ResponseWriter, r *http.Request) {
	var in usecase.IndicatorInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	indicator, err := s.uc.Indicator.CreateIndicator(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, indicator)
}

func (s *Server) getIndicator(w http.ResponseWriter, r *http.Request) {
	indicator, err := s.uc.Indicator.GetIndicator(r.Context(), orgID(r), chi.URLParam(r, "indicatorID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, indicator)
}

func (s *Server) updateIndicator(w http.ResponseWriter, r *http.Request) {
	var in usecase.IndicatorInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	indicator, err := s.uc.Indicator.UpdateIndicator(r.Context(), orgID(r), chi.URLParam(r, "indicatorID"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, indicator)
}

func (s *Server) deleteIndicator(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Indicator.DeleteIndicator(r.Context(), orgID(r), chi.URLParam(r, "indicatorID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMeasurements(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	measurements, err := s.uc.Indicator.ListMeasurements(r.Context(), orgID(r), chi.URLParam(r, "indicatorID"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, measurements)
}

func (s *Server) recordMeasurement(w http.ResponseWriter, r *http.Request) {
	var in usecase.MeasurementInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	in.IndicatorID = chi.URLParam(r, "indicatorID")
	in.RecordedBy = actorOf(r, in.RecordedBy)

	result, err := s.uc.Indicator.RecordMeasurement(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, result)
}

func (s *Server) suggestThresholds(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.uc.Suggest.SuggestThresholds(r.Context(), orgID(r), chi.URLParam(r, "indicatorID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, suggestions)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.uc.Indicator.ListAlerts(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, alerts)
}

func (s *Server) getAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.uc.Indicator.GetAlert(r.Context(), orgID(r), chi.URLParam(r, "alertID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, alert)
}

func (s *Server) transitionAlert(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	alert, err := s.uc.Indicator.TransitionAlert(r.Context(), orgID(r), chi.URLParam(r, "alertID"), req.State, actorOf(r, req.Actor), req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, alert)
}
