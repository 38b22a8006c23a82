package http

import (
	"net/http"

	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type initializeRequest struct {
	Period types.Period `json:"period"`
}

type commitRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

func (s *Server) listCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := s.uc.Period.ListCommits(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, commits)
}

func (s *Server) getActivePeriod(w http.ResponseWriter, r *http.Request) {
	pointer, err := s.uc.Period.GetActivePeriod(r.Context(), orgID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, pointer)
}

func (s *Server) initializePeriod(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	pointer, err := s.uc.Period.InitializePeriod(r.Context(), orgID(r), req.Period)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, pointer)
}

func (s *Server) compareSnapshots(w http.ResponseWriter, r *http.Request) {
	from, err := periodParam(r, "from")
	if err != nil {
		handleError(w, r, err)
		return
	}
	to, err := periodParam(r, "to")
	if err != nil {
		handleError(w, r, err)
		return
	}
	comparison, err := s.uc.Period.CompareSnapshots(r.Context(), orgID(r), from, to)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, comparison)
}

func (s *Server) getCommit(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, "period")
	if err != nil {
		handleError(w, r, err)
		return
	}
	commit, err := s.uc.Period.GetCommit(r.Context(), orgID(r), period)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, commit)
}

func (s *Server) commitPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, "period")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	result, err := s.uc.Period.CommitPeriod(r.Context(), orgID(r), period, actorOf(r, req.Actor), req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, result)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, "period")
	if err != nil {
		handleError(w, r, err)
		return
	}
	snapshots, err := s.uc.Period.GetHistoricalSnapshot(r.Context(), orgID(r), period)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, snapshots)
}
