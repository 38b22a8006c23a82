package types

import "github.com/m-mizutani/goerr/v2"

// ControlType classifies how a control acts on a risk
type ControlType string

const (
	ControlTypePreventive ControlType = "PREVENTIVE"
	ControlTypeDetective  ControlType = "DETECTIVE"
	ControlTypeCorrective ControlType = "CORRECTIVE"
)

// AllControlTypes returns all valid control types
func AllControlTypes() []ControlType {
	return []ControlType{ControlTypePreventive, ControlTypeDetective, ControlTypeCorrective}
}

// IsValid checks if the control type is valid
func (c ControlType) IsValid() bool {
	switch c {
	case ControlTypePreventive, ControlTypeDetective, ControlTypeCorrective:
		return true
	default:
		return false
	}
}

func (c ControlType) String() string {
	return string(c)
}

// ParseControlType parses a string into a ControlType
func ParseControlType(s string) (ControlType, error) {
	t := ControlType(s)
	if !t.IsValid() {
		return "", goerr.New("invalid control type", goerr.V("type", s))
	}
	return t, nil
}

// TargetDimension is the risk dimension a control reduces
type TargetDimension string

const (
	TargetLikelihood TargetDimension = "LIKELIHOOD"
	TargetImpact     TargetDimension = "IMPACT"
	TargetBoth       TargetDimension = "BOTH"
)

// AllTargetDimensions returns all valid target dimensions
func AllTargetDimensions() []TargetDimension {
	return []TargetDimension{TargetLikelihood, TargetImpact, TargetBoth}
}

// IsValid checks if the target dimension is valid
func (d TargetDimension) IsValid() bool {
	switch d {
	case TargetLikelihood, TargetImpact, TargetBoth:
		return true
	default:
		return false
	}
}

// Covers reports whether a control with this target reduces dim.
// TargetBoth covers both dimensions.
func (d TargetDimension) Covers(dim TargetDimension) bool {
	return d == dim || d == TargetBoth
}

func (d TargetDimension) String() string {
	return string(d)
}

// ParseTargetDimension parses a string into a TargetDimension
func ParseTargetDimension(s string) (TargetDimension, error) {
	d := TargetDimension(s)
	if !d.IsValid() {
		return "", goerr.New("invalid target dimension", goerr.V("dimension", s))
	}
	return d, nil
}
