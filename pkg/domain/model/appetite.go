package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// AppetiteStatement is the board's versioned risk appetite. Version is
// assigned when the statement is approved.
type AppetiteStatement struct {
	ID            string                `json:"id"`
	OrgID         string                `json:"org_id"`
	Title         string                `json:"title"`
	Body          string                `json:"body"`
	Version       int                   `json:"version"`
	Status        types.StatementStatus `json:"status"`
	EffectiveFrom *time.Time            `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time            `json:"effective_to,omitempty"`
	CreatedBy     string                `json:"created_by"`
	ApprovedBy    string                `json:"approved_by"`
	ApprovedAt    *time.Time            `json:"approved_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Validate checks the statement content
func (s *AppetiteStatement) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return invalid("statement title is required")
	}
	if !s.Status.IsValid() {
		return invalid("invalid statement status", goerr.V("status", s.Status))
	}
	if s.EffectiveFrom != nil && s.EffectiveTo != nil && !s.EffectiveFrom.Before(*s.EffectiveTo) {
		return invalid("effective range must start before it ends",
			goerr.V("from", *s.EffectiveFrom), goerr.V("to", *s.EffectiveTo))
	}
	return nil
}

// InForce reports whether the statement governs at the given time. Only
// an APPROVED statement inside its effective range is in force; an open
// bound does not restrict.
func (s *AppetiteStatement) InForce(at time.Time) bool {
	if s.Status != types.StatementApproved {
		return false
	}
	if s.EffectiveFrom != nil && at.Before(*s.EffectiveFrom) {
		return false
	}
	if s.EffectiveTo != nil && !at.Before(*s.EffectiveTo) {
		return false
	}
	return true
}

// Clone returns a deep copy
func (s *AppetiteStatement) Clone() *AppetiteStatement {
	c := *s
	c.EffectiveFrom = cloneTime(s.EffectiveFrom)
	c.EffectiveTo = cloneTime(s.EffectiveTo)
	c.ApprovedAt = cloneTime(s.ApprovedAt)
	return &c
}

// AppetiteCategory sets the appetite level of a top-level taxonomy
// category under an approved statement
type AppetiteCategory struct {
	ID          string              `json:"id"`
	OrgID       string              `json:"org_id"`
	StatementID string              `json:"statement_id"`
	CategoryID  types.CategoryID    `json:"category_id"`
	Level       types.AppetiteLevel `json:"level"`
	Rationale   string              `json:"rationale"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Validate checks the category's own fields
func (c *AppetiteCategory) Validate() error {
	if c.StatementID == "" {
		return invalid("appetite statement is required")
	}
	if err := c.CategoryID.Validate(); err != nil {
		return invalid("invalid category", goerr.V("category_id", c.CategoryID))
	}
	if !c.Level.IsValid() {
		return invalid("invalid appetite level", goerr.V("level", c.Level))
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
