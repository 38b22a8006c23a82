package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// DIMEMax is the highest score of a single DIME dimension
const DIMEMax = 3

// DIMEScore holds the Design, Implementation, Monitoring and Evaluation
// scores of a control
type DIMEScore struct {
	Design         int `json:"design"`
	Implementation int `json:"implementation"`
	Monitoring     int `json:"monitoring"`
	Evaluation     int `json:"evaluation"`
}

// Validate checks every dimension is within 0..3
func (s DIMEScore) Validate() error {
	dims := map[string]int{
		"design":         s.Design,
		"implementation": s.Implementation,
		"monitoring":     s.Monitoring,
		"evaluation":     s.Evaluation,
	}
	for name, v := range dims {
		if v < 0 || v > DIMEMax {
			return invalid("DIME score out of range", goerr.V("dimension", name), goerr.V("score", v))
		}
	}
	return nil
}

// Control is a safeguard that reduces one or both risk dimensions. ID is
// its generated code.
type Control struct {
	ID          string                `json:"id"`
	OrgID       string                `json:"org_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Owner       string                `json:"owner"`
	Type        types.ControlType     `json:"type"`
	Target      types.TargetDimension `json:"target"`
	Score       DIMEScore             `json:"score"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Validate checks the control fields and scores
func (c *Control) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return invalid("control title is required")
	}
	if !c.Type.IsValid() {
		return invalid("invalid control type", goerr.V("type", c.Type))
	}
	if !c.Target.IsValid() {
		return invalid("invalid target dimension", goerr.V("target", c.Target))
	}
	return c.Score.Validate()
}
