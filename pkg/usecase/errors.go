package usecase

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrSuggestionUnavailable is returned by suggestion use cases when no
	// provider is configured
	ErrSuggestionUnavailable = goerr.New("suggestion provider is not configured")
)

// Context keys for error values
const (
	AttemptKey  = "attempt"
	ActorKey    = "actor"
	KindKey     = "entity_kind"
	RecordIDKey = "record_id"
)
