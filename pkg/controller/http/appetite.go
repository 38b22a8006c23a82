package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

type statementRequest struct {
	usecase.StatementInput
	Actor string `json:"actor"`
}

type approveRequest struct {
	Approver string `json:"approver"`
}

type categoryUpdateRequest struct {
	Level     types.AppetiteLevel `json:"level"`
	Rationale string              `json:"rationale"`
}

type evaluateRequest struct {
	MetricType types.MetricType `json:"metric_type"`
	Thresholds model.Thresholds `json:"thresholds"`
	Value      float64          `json:"value"`
}

type acceptRequest struct {
	Actor string    `json:"actor"`
	Note  string    `json:"note"`
	Until time.Time `json:"until"`
}

func (s *Server) enterpriseStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.uc.Tolerance.GetEnterpriseAppetiteStatus(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, status)
}

func (s *Server) listStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := s.uc.Appetite.ListStatements(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statements)
}

func (s *Server) createStatement(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	statement, err := s.uc.Appetite.CreateStatement(r.Context(), orgID(r), actorOf(r, req.Actor), req.StatementInput)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, statement)
}

func (s *Server) getStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := s.uc.Appetite.GetStatement(r.Context(), orgID(r), chi.URLParam(r, "statementID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statement)
}

func (s *Server) updateStatement(w http.ResponseWriter, r *http.Request) {
	var in usecase.StatementInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	statement, err := s.uc.Appetite.UpdateStatement(r.Context(), orgID(r), chi.URLParam(r, "statementID"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statement)
}

func (s *Server) approveStatement(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	statement, err := s.uc.Appetite.ApproveStatement(r.Context(), orgID(r), chi.URLParam(r, "statementID"), actorOf(r, req.Approver))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statement)
}

func (s *Server) archiveStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := s.uc.Appetite.ArchiveStatement(r.Context(), orgID(r), chi.URLParam(r, "statementID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, statement)
}

func (s *Server) listAppetiteCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.uc.Appetite.ListCategories(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, categories)
}

func (s *Server) createAppetiteCategory(w http.ResponseWriter, r *http.Request) {
	var in usecase.AppetiteCategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	category, err := s.uc.Appetite.CreateCategory(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, category)
}

func (s *Server) updateAppetiteCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	category, err := s.uc.Appetite.UpdateCategory(r.Context(), orgID(r), chi.URLParam(r, "categoryID"), req.Level, req.Rationale)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, category)
}

func (s *Server) deleteAppetiteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Appetite.DeleteCategory(r.Context(), orgID(r), chi.URLParam(r, "categoryID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTolerances(w http.ResponseWriter, r *http.Request) {
	tolerances, err := s.uc.Tolerance.ListTolerances(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, tolerances)
}

func (s *Server) createTolerance(w http.ResponseWriter, r *http.Request) {
	var in usecase.ToleranceInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	cfg, err := s.uc.Tolerance.CreateTolerance(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, cfg)
}

// evaluateTolerance judges a value against thresholds without storing
// anything
func (s *Server) evaluateTolerance(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	cfg := &model.ToleranceConfig{MetricType: req.MetricType, Thresholds: req.Thresholds}
	status, err := s.uc.Tolerance.EvaluateToleranceMetric(cfg, req.Value)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]types.ToleranceStatus{"status": status})
}

func (s *Server) getTolerance(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.uc.Tolerance.GetTolerance(r.Context(), orgID(r), chi.URLParam(r, "toleranceID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cfg)
}

func (s *Server) updateTolerance(w http.ResponseWriter, r *http.Request) {
	var in usecase.ToleranceInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	cfg, err := s.uc.Tolerance.UpdateTolerance(r.Context(), orgID(r), chi.URLParam(r, "toleranceID"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cfg)
}

func (s *Server) deleteTolerance(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Tolerance.DeleteTolerance(r.Context(), orgID(r), chi.URLParam(r, "toleranceID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordReading(w http.ResponseWriter, r *http.Request) {
	var in usecase.ReadingInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	in.ToleranceID = chi.URLParam(r, "toleranceID")
	in.RecordedBy = actorOf(r, in.RecordedBy)

	result, err := s.uc.Tolerance.RecordReading(r.Context(), orgID(r), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, result)
}

func (s *Server) listBreaches(w http.ResponseWriter, r *http.Request) {
	breaches, err := s.uc.Tolerance.ListBreaches(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, breaches)
}

func (s *Server) getBreach(w http.ResponseWriter, r *http.Request) {
	breach, err := s.uc.Tolerance.GetBreach(r.Context(), orgID(r), chi.URLParam(r, "breachID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, breach)
}

func (s *Server) transitionBreach(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	breach, err := s.uc.Tolerance.TransitionBreach(r.Context(), orgID(r), chi.URLParam(r, "breachID"), req.State, actorOf(r, req.Actor), req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, breach)
}

func (s *Server) acceptBreach(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	breach, err := s.uc.Tolerance.AcceptBreach(r.Context(), orgID(r), chi.URLParam(r, "breachID"), actorOf(r, req.Actor), req.Note, req.Until)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, breach)
}
