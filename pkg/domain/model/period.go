package model

import (
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// PeriodPointer is the organization's single active reporting period
type PeriodPointer struct {
	OrgID     string        `json:"org_id"`
	Active    types.Period  `json:"active"`
	Previous  *types.Period `json:"previous,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PeriodCommit is the immutable summary of a committed quarter
type PeriodCommit struct {
	ID              string       `json:"id"`
	OrgID           string       `json:"org_id"`
	Period          types.Period `json:"period"`
	NextPeriod      types.Period `json:"next_period"`
	CommittedBy     string       `json:"committed_by"`
	Note            string       `json:"note"`
	CommittedAt     time.Time    `json:"committed_at"`
	RiskCount       int          `json:"risk_count"`
	OpenCount       int          `json:"open_count"`
	MonitoringCount int          `json:"monitoring_count"`
	ClosedCount     int          `json:"closed_count"`
	TotalInherent   int          `json:"total_inherent"`
	TotalResidual   int          `json:"total_residual"`
}

// RiskSnapshot is the frozen state of one risk at a period commit. It is
// written once and never updated.
type RiskSnapshot struct {
	ID                 string           `json:"id"`
	OrgID              string           `json:"org_id"`
	CommitID           string           `json:"commit_id"`
	Period             types.Period     `json:"period"`
	RiskID             string           `json:"risk_id"`
	Title              string           `json:"title"`
	CategoryID         types.CategoryID `json:"category_id"`
	DivisionID         types.DivisionID `json:"division_id"`
	Owner              string           `json:"owner"`
	Status             types.RiskStatus `json:"status"`
	InherentLikelihood int              `json:"inherent_likelihood"`
	InherentImpact     int              `json:"inherent_impact"`
	InherentScore      int              `json:"inherent_score"`
	ResidualLikelihood int              `json:"residual_likelihood"`
	ResidualImpact     int              `json:"residual_impact"`
	ResidualScore      int              `json:"residual_score"`
	ControlCount       int              `json:"control_count"`
	IndicatorCount     int              `json:"indicator_count"`
	IncidentCount      int              `json:"incident_count"`
	CapturedAt         time.Time        `json:"captured_at"`
}

// RegisterState is the live register as read inside a commit transaction
type RegisterState struct {
	// Pointer is nil until the organization's first period is set
	Pointer *PeriodPointer `json:"pointer,omitempty"`
	// Risks holds the active risks only
	Risks []*Risk `json:"risks,omitempty"`
	// Controls is keyed by control ID
	Controls map[string]*Control `json:"controls,omitempty"`
	// Links maps risk ID to linked control IDs
	Links map[string][]string `json:"links,omitempty"`
	// IndicatorCounts maps risk ID to the number of indicators on it
	IndicatorCounts map[string]int `json:"indicator_counts,omitempty"`
}

// CommitRequest carries the caller's intent for a period commit
type CommitRequest struct {
	OrgID  string       `json:"org_id"`
	Period types.Period `json:"period"`
	Actor  string       `json:"actor"`
	Note   string       `json:"note"`
	At     time.Time    `json:"at"`
}

// Validate checks the request fields
func (r CommitRequest) Validate() error {
	if r.OrgID == "" {
		return invalid("organization is required")
	}
	if err := r.Period.Validate(); err != nil {
		return invalid("invalid period", goerr.V(PeriodKey, r.Period.String()), goerr.V("reason", err.Error()))
	}
	if strings.TrimSpace(r.Actor) == "" {
		return invalid("actor is required to commit a period")
	}
	return nil
}

// CommitPlan is everything a commit writes
type CommitPlan struct {
	Commit    *PeriodCommit   `json:"commit,omitempty"`
	Snapshots []*RiskSnapshot `json:"snapshots,omitempty"`
	Pointer   *PeriodPointer  `json:"pointer,omitempty"`
}

// BuildCommit freezes state into snapshots and a summary, and advances the
// period pointer. The committed period must be the active one; the first
// commit of an organization bootstraps the pointer. newID supplies IDs for
// the commit and its snapshots.
func BuildCommit(req CommitRequest, state *RegisterState, newID func() string) (*CommitPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if state.Pointer != nil && state.Pointer.Active != req.Period {
		return nil, invalid("period is not the active period",
			goerr.V(PeriodKey, req.Period.String()),
			goerr.V("active", state.Pointer.Active.String()))
	}

	next := req.Period.Next()
	commit := &PeriodCommit{
		ID:          newID(),
		OrgID:       req.OrgID,
		Period:      req.Period,
		NextPeriod:  next,
		CommittedBy: req.Actor,
		Note:        req.Note,
		CommittedAt: req.At,
	}

	risks := append([]*Risk(nil), state.Risks...)
	sort.Slice(risks, func(i, j int) bool { return risks[i].ID < risks[j].ID })

	snapshots := make([]*RiskSnapshot, 0, len(risks))
	for _, risk := range risks {
		if !risk.IsActive {
			continue
		}
		controls := make([]*Control, 0, len(state.Links[risk.ID]))
		for _, cid := range state.Links[risk.ID] {
			if c, ok := state.Controls[cid]; ok {
				controls = append(controls, c)
			}
		}
		res := ComputeResidual(risk, controls)
		status := risk.Status.Normalize()

		snapshots = append(snapshots, &RiskSnapshot{
			ID:                 newID(),
			OrgID:              req.OrgID,
			CommitID:           commit.ID,
			Period:             req.Period,
			RiskID:             risk.ID,
			Title:              risk.Title,
			CategoryID:         risk.CategoryID,
			DivisionID:         risk.DivisionID,
			Owner:              risk.Owner,
			Status:             status,
			InherentLikelihood: risk.InherentLikelihood,
			InherentImpact:     risk.InherentImpact,
			InherentScore:      res.InherentScore,
			ResidualLikelihood: res.Likelihood,
			ResidualImpact:     res.Impact,
			ResidualScore:      res.Score,
			ControlCount:       len(controls),
			IndicatorCount:     state.IndicatorCounts[risk.ID],
			IncidentCount:      risk.IncidentCount,
			CapturedAt:         req.At,
		})

		commit.RiskCount++
		commit.TotalInherent += res.InherentScore
		commit.TotalResidual += res.Score
		switch status {
		case types.RiskStatusOpen:
			commit.OpenCount++
		case types.RiskStatusMonitoring:
			commit.MonitoringCount++
		case types.RiskStatusClosed:
			commit.ClosedCount++
		}
	}

	previous := req.Period
	return &CommitPlan{
		Commit:    commit,
		Snapshots: snapshots,
		Pointer: &PeriodPointer{
			OrgID:     req.OrgID,
			Active:    next,
			Previous:  &previous,
			UpdatedAt: req.At,
		},
	}, nil
}

// CommitResult is returned to the caller of a period commit
type CommitResult struct {
	Commit        *PeriodCommit `json:"commit"`
	SnapshotCount int           `json:"snapshot_count"`
	ActivePeriod  types.Period  `json:"active_period"`
}

// Clone returns a deep copy
func (p *PeriodPointer) Clone() *PeriodPointer {
	c := *p
	if p.Previous != nil {
		prev := *p.Previous
		c.Previous = &prev
	}
	return &c
}
