package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Sentinel errors of the risk engine. Callers test them with errors.Is.
var (
	ErrValidation                    = goerr.New("validation error")
	ErrInvalidThresholdConfiguration = goerr.New("invalid threshold configuration")
	ErrAlreadyCommitted              = goerr.New("period already committed")
	ErrGenerationExhausted           = goerr.New("identifier generation exhausted")
	ErrConcurrentModification        = goerr.New("concurrent modification")
	ErrNotFound                      = goerr.New("not found")
	ErrAccessDenied                  = goerr.New("access denied")

	// ErrDuplicateCode is returned by repositories when an entity code is
	// already taken. Creation paths retry with a fresh code.
	ErrDuplicateCode = goerr.New("duplicate code")

	// ErrConflict is returned by repositories when a uniqueness rule other
	// than the entity code is violated.
	ErrConflict = goerr.New("conflicting record")
)

// Context keys for error values
const (
	OrgIDKey       = "org_id"
	RiskIDKey      = "risk_id"
	ControlIDKey   = "control_id"
	IndicatorIDKey = "indicator_id"
	AlertIDKey     = "alert_id"
	BreachIDKey    = "breach_id"
	StatementIDKey = "statement_id"
	ToleranceIDKey = "tolerance_id"
	PeriodKey      = "period"
	CurrentKey     = "current"
	PrefixKey      = "prefix"
)

// ErrorKind is the stable, client-facing classification of an error
type ErrorKind string

const (
	KindValidation                    ErrorKind = "ValidationError"
	KindInvalidThresholdConfiguration ErrorKind = "InvalidThresholdConfiguration"
	KindAlreadyCommitted              ErrorKind = "AlreadyCommitted"
	KindGenerationExhausted           ErrorKind = "GenerationExhausted"
	KindConcurrentModification        ErrorKind = "ConcurrentModification"
	KindNotFound                      ErrorKind = "NotFound"
	KindAccessDenied                  ErrorKind = "AccessDenied"
	KindInternal                      ErrorKind = "InternalError"
)

// KindOf classifies err. More specific kinds win over ErrValidation.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidThresholdConfiguration):
		return KindInvalidThresholdConfiguration
	case errors.Is(err, ErrAlreadyCommitted):
		return KindAlreadyCommitted
	case errors.Is(err, ErrGenerationExhausted):
		return KindGenerationExhausted
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return KindValidation
	default:
		return KindInternal
	}
}

func invalid(msg string, options ...goerr.Option) error {
	return goerr.Wrap(ErrValidation, msg, options...)
}

func invalidThreshold(msg string, options ...goerr.Option) error {
	return goerr.Wrap(ErrInvalidThresholdConfiguration, msg, options...)
}
