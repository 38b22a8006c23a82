package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// Transition records one lifecycle change
type Transition struct {
	From  types.LifecycleState `json:"from"`
	To    types.LifecycleState `json:"to"`
	Actor string               `json:"actor"`
	Note  string               `json:"note"`
	At    time.Time            `json:"at"`
}

// Lifecycle is the state machine shared by alerts and breaches. Version is
// incremented on every transition and used for compare-and-swap updates.
type Lifecycle struct {
	State   types.LifecycleState `json:"state"`
	Version int                  `json:"version"`
	History []Transition         `json:"history,omitempty"`
}

// NewLifecycle returns an Open lifecycle at version 1
func NewLifecycle() Lifecycle {
	return Lifecycle{State: types.LifecycleOpen, Version: 1}
}

// Apply moves the lifecycle to next. Reaching a state that is already the
// current one returns ErrConcurrentModification so that the second of two
// identical requests learns it lost.
func (l *Lifecycle) Apply(next types.LifecycleState, actor, note string, at time.Time) error {
	if strings.TrimSpace(actor) == "" {
		return invalid("actor is required for a lifecycle transition")
	}
	if strings.TrimSpace(note) == "" {
		return invalid("note is required for a lifecycle transition")
	}
	if l.State == next {
		return goerr.Wrap(ErrConcurrentModification, "already "+strings.ToLower(next.String()),
			goerr.V(CurrentKey, l.State))
	}
	if !l.State.CanTransitionTo(next) {
		return invalid("invalid lifecycle transition",
			goerr.V("from", l.State), goerr.V("to", next))
	}

	l.History = append(l.History, Transition{
		From:  l.State,
		To:    next,
		Actor: actor,
		Note:  note,
		At:    at,
	})
	l.State = next
	l.Version++
	return nil
}

// Clone returns a deep copy
func (l Lifecycle) Clone() Lifecycle {
	c := l
	c.History = append([]Transition(nil), l.History...)
	return c
}

// Alert is raised when an indicator measurement turns Yellow or Red
type Alert struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"org_id"`
	IndicatorID   string            `json:"indicator_id"`
	MeasurementID string            `json:"measurement_id"`
	Severity      types.AlertStatus `json:"severity"`
	Value         float64           `json:"value"`
	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy
func (a *Alert) Clone() *Alert {
	c := *a
	c.Lifecycle = a.Lifecycle.Clone()
	return &c
}

// Breach is raised when a tolerance metric turns Amber or Red
type Breach struct {
	ID          string                `json:"id"`
	OrgID       string                `json:"org_id"`
	ToleranceID string                `json:"tolerance_id"`
	IndicatorID string                `json:"indicator_id"`
	Severity    types.ToleranceStatus `json:"severity"`
	Value       float64               `json:"value"`
	Lifecycle
	AcceptedUntil *time.Time `json:"accepted_until,omitempty"`
	DetectedAt    time.Time  `json:"detected_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone returns a deep copy
func (b *Breach) Clone() *Breach {
	c := *b
	c.Lifecycle = b.Lifecycle.Clone()
	if b.AcceptedUntil != nil {
		until := *b.AcceptedUntil
		c.AcceptedUntil = &until
	}
	return &c
}

// Suppresses reports whether this breach prevents a new breach for the
// same tolerance at now: it is still active, or it is a board-accepted
// exception whose window has not expired.
func (b *Breach) Suppresses(now time.Time) bool {
	if b.State.IsActive() {
		return true
	}
	return b.State == types.LifecycleAccepted && b.AcceptedUntil != nil && now.Before(*b.AcceptedUntil)
}

// Accept records a board-accepted exception valid until the given time.
// The window must be in the future and no longer than maxDays.
func (b *Breach) Accept(actor, note string, until, now time.Time, maxDays int) error {
	if !until.After(now) {
		return invalid("exception window must end in the future", goerr.V("until", until))
	}
	if maxDays > 0 && until.After(now.AddDate(0, 0, maxDays)) {
		return invalid("exception window is too long",
			goerr.V("until", until), goerr.V("max_days", maxDays))
	}
	if err := b.Apply(types.LifecycleAccepted, actor, note, now); err != nil {
		return err
	}
	b.AcceptedUntil = &until
	return nil
}
