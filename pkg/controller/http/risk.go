package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

type codeRequest struct {
	Kind  types.EntityKind `json:"kind"`
	Parts []types.CodePart `json:"parts"`
}

func (s *Server) createCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	var (
		code string
		err  error
	)
	if req.Kind == "" {
		code, err = s.uc.Code.NextCode(r.Context(), orgID(r), req.Parts...)
	} else {
		code, err = s.uc.Code.CreateEntityCode(r.Context(), orgID(r), req.Kind, req.Parts)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, map[string]string{"code": code})
}

func (s *Server) listRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := s.uc.Risk.ListRisks(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, risks)
}

func (s *Server) createRisk(w http.ResponseWriter, r *http.Request) {
	var in usecase.RiskInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	risk, err := s.uc.Risk.CreateRisk(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, risk)
}

func (s *Server) getRisk(w http.ResponseWriter, r *http.Request) {
	risk, err := s.uc.Risk.GetRisk(r.Context(), orgID(r), chi.URLParam(r, "riskID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, risk)
}

func (s *Server) updateRisk(w http.ResponseWriter, r *http.Request) {
	var in usecase.RiskInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	risk, err := s.uc.Risk.UpdateRisk(r.Context(), orgID(r), chi.URLParam(r, "riskID"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, risk)
}

func (s *Server) deleteRisk(w http.ResponseWriter, r *http.Request) {
	softClosed, err := s.uc.Risk.DeleteRisk(r.Context(), orgID(r), chi.URLParam(r, "riskID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]bool{"soft_closed": softClosed})
}

func (s *Server) computeResidual(w http.ResponseWriter, r *http.Request) {
	residual, err := s.uc.Risk.ComputeResidual(r.Context(), orgID(r), chi.URLParam(r, "riskID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, residual)
}

func (s *Server) listRiskControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.uc.Control.ListRiskControls(r.Context(), orgID(r), chi.URLParam(r, "riskID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, controls)
}

func (s *Server) linkControl(w http.ResponseWriter, r *http.Request) {
	riskID := chi.URLParam(r, "riskID")
	if err := s.uc.Control.LinkControl(r.Context(), orgID(r), riskID, chi.URLParam(r, "controlID")); err != nil {
		handleError(w, r, err)
		return
	}
	s.respondResidual(w, r, riskID)
}

func (s *Server) unlinkControl(w http.ResponseWriter, r *http.Request) {
	riskID := chi.URLParam(r, "riskID")
	if err := s.uc.Control.UnlinkControl(r.Context(), orgID(r), riskID, chi.URLParam(r, "controlID")); err != nil {
		handleError(w, r, err)
		return
	}
	s.respondResidual(w, r, riskID)
}

// respondResidual answers link changes with the recomputed residual
func (s *Server) respondResidual(w http.ResponseWriter, r *http.Request, riskID string) {
	residual, err := s.uc.Risk.ComputeResidual(r.Context(), orgID(r), riskID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, residual)
}

func (s *Server) suggestControls(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.uc.Suggest.SuggestControls(r.Context(), orgID(r), chi.URLParam(r, "riskID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, suggestions)
}

func (s *Server) acceptControlSuggestion(w http.ResponseWriter, r *http.Request) {
	var suggestion model.ControlSuggestion
	if err := decodeJSON(w, r, &suggestion); err != nil {
		handleError(w, r, err)
		return
	}
	control, err := s.uc.Suggest.AcceptControlSuggestion(r.Context(), orgID(r), chi.URLParam(r, "riskID"), suggestion)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, control)
}

func (s *Server) listControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.uc.Control.ListControls(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, controls)
}

func (s *Server) createControl(w http.ResponseWriter, r *http.Request) {
	var in usecase.ControlInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	control, err := s.uc.Control.CreateControl(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, control)
}

func (s *Server) getControl(w http.ResponseWriter, r *http.Request) {
	control, err := s.uc.Control.GetControl(r.Context(), orgID(r), chi.URLParam(r, "controlID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, control)
}

func (s *Server) updateControl(w http.ResponseWriter, r *http.Request) {
	var in usecase.ControlInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	control, err := s.uc.Control.UpdateControl(r.Context(), orgID(r), chi.URLParam(r, "controlID"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, control)
}

func (s *Server) deleteControl(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Control.DeleteControl(r.Context(), orgID(r), chi.URLParam(r, "controlID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listControlRisks(w http.ResponseWriter, r *http.Request) {
	riskIDs, err := s.uc.Control.ListControlRisks(r.Context(), orgID(r), chi.URLParam(r, "controlID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]string{"risk_ids": riskIDs})
}
