package types

import "github.com/m-mizutani/goerr/v2"

// RiskStatus represents the status of a risk in the register
type RiskStatus string

const (
	RiskStatusOpen       RiskStatus = "OPEN"
	RiskStatusMonitoring RiskStatus = "MONITORING"
	RiskStatusClosed     RiskStatus = "CLOSED"
)

// AllRiskStatuses returns all valid risk statuses
func AllRiskStatuses() []RiskStatus {
	return []RiskStatus{
		RiskStatusOpen,
		RiskStatusMonitoring,
		RiskStatusClosed,
	}
}

// IsValid checks if the risk status is valid
func (s RiskStatus) IsValid() bool {
	switch s {
	case RiskStatusOpen,
		RiskStatusMonitoring,
		RiskStatusClosed:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as RiskStatusOpen
func (s RiskStatus) Normalize() RiskStatus {
	if s == "" {
		return RiskStatusOpen
	}
	return s
}

func (s RiskStatus) String() string {
	return string(s)
}

// ParseRiskStatus parses a string into a RiskStatus
func ParseRiskStatus(s string) (RiskStatus, error) {
	status := RiskStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid risk status", goerr.V("status", s))
	}
	return status, nil
}
