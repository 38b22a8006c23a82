package types

import "github.com/m-mizutani/goerr/v2"

// AppetiteLevel is the board-level acceptance of risk for a category
type AppetiteLevel string

const (
	AppetiteZero     AppetiteLevel = "ZERO"
	AppetiteLow      AppetiteLevel = "LOW"
	AppetiteModerate AppetiteLevel = "MODERATE"
	AppetiteHigh     AppetiteLevel = "HIGH"
)

// AllAppetiteLevels returns all valid appetite levels
func AllAppetiteLevels() []AppetiteLevel {
	return []AppetiteLevel{AppetiteZero, AppetiteLow, AppetiteModerate, AppetiteHigh}
}

// IsValid checks if the appetite level is valid
func (l AppetiteLevel) IsValid() bool {
	switch l {
	case AppetiteZero, AppetiteLow, AppetiteModerate, AppetiteHigh:
		return true
	default:
		return false
	}
}

func (l AppetiteLevel) String() string {
	return string(l)
}

// ParseAppetiteLevel parses a string into an AppetiteLevel
func ParseAppetiteLevel(s string) (AppetiteLevel, error) {
	l := AppetiteLevel(s)
	if !l.IsValid() {
		return "", goerr.New("invalid appetite level", goerr.V("level", s))
	}
	return l, nil
}

// StatementStatus is the approval state of an appetite statement
type StatementStatus string

const (
	StatementDraft      StatementStatus = "DRAFT"
	StatementApproved   StatementStatus = "APPROVED"
	StatementSuperseded StatementStatus = "SUPERSEDED"
	StatementArchived   StatementStatus = "ARCHIVED"
)

// IsValid checks if the statement status is valid
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementDraft, StatementApproved, StatementSuperseded, StatementArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal successor of s
func (s StatementStatus) CanTransitionTo(next StatementStatus) bool {
	switch s {
	case StatementDraft:
		return next == StatementApproved || next == StatementArchived
	case StatementApproved:
		return next == StatementSuperseded
	case StatementSuperseded:
		return next == StatementArchived
	default:
		return false
	}
}

func (s StatementStatus) String() string {
	return string(s)
}
