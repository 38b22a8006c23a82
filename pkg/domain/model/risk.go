package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// Risk is a live entry of the risk register. ID is its generated code.
type Risk struct {
	ID                 string           `json:"id"`
	OrgID              string           `json:"org_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	CategoryID         types.CategoryID `json:"category_id"`
	SubcategoryID      types.CategoryID `json:"subcategory_id"`
	Owner              string           `json:"owner"`
	DivisionID         types.DivisionID `json:"division_id"`
	InherentLikelihood int              `json:"inherent_likelihood"`
	InherentImpact     int              `json:"inherent_impact"`
	Status             types.RiskStatus `json:"status"`
	IsActive           bool             `json:"is_active"`
	IncidentCount      int              `json:"incident_count"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// InherentScore is likelihood times impact before any control
func (r *Risk) InherentScore() int {
	return r.InherentLikelihood * r.InherentImpact
}

// Validate checks the risk against the register configuration
func (r *Risk) Validate(cfg *config.RegisterConfig) error {
	if strings.TrimSpace(r.Title) == "" {
		return invalid("risk title is required")
	}
	cat := cfg.FindCategory(r.CategoryID)
	if cat == nil {
		return invalid("unknown risk category", goerr.V("category_id", r.CategoryID))
	}
	if r.SubcategoryID != "" && !cat.HasSubcategory(r.SubcategoryID) {
		return invalid("subcategory does not belong to category",
			goerr.V("category_id", r.CategoryID),
			goerr.V("subcategory_id", r.SubcategoryID))
	}
	if cfg.FindDivision(r.DivisionID) == nil {
		return invalid("unknown division", goerr.V("division_id", r.DivisionID))
	}
	if r.InherentLikelihood < 1 || r.InherentLikelihood > cfg.Scale.LikelihoodMax {
		return invalid("inherent likelihood out of range",
			goerr.V("likelihood", r.InherentLikelihood),
			goerr.V("max", cfg.Scale.LikelihoodMax))
	}
	if r.InherentImpact < 1 || r.InherentImpact > cfg.Scale.ImpactMax {
		return invalid("inherent impact out of range",
			goerr.V("impact", r.InherentImpact),
			goerr.V("max", cfg.Scale.ImpactMax))
	}
	if !r.Status.Normalize().IsValid() {
		return invalid("invalid risk status", goerr.V("status", r.Status))
	}
	if r.IncidentCount < 0 {
		return invalid("incident count cannot be negative", goerr.V("incident_count", r.IncidentCount))
	}
	return nil
}

// RiskControlLink associates a risk with a control. Neither side owns the
// other.
type RiskControlLink struct {
	OrgID     string    `json:"org_id"`
	RiskID    string    `json:"risk_id"`
	ControlID string    `json:"control_id"`
	CreatedAt time.Time `json:"created_at"`
}
