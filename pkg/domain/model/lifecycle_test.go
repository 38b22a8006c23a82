package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func TestLifecycleApply(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("open to acknowledged to resolved", func(t *testing.T) {
		l := model.NewLifecycle()
		gt.NoError(t, l.Apply(types.LifecycleAcknowledged, "alice", "looking into it", now)).Required()
		gt.NoError(t, l.Apply(types.LifecycleResolved, "alice", "root cause fixed", now.Add(time.Hour))).Required()

		gt.Value(t, l.State).Equal(types.LifecycleResolved)
		gt.Value(t, l.Version).Equal(3)
		gt.Array(t, l.History).Length(2)
		gt.Value(t, l.History[0].From).Equal(types.LifecycleOpen)
		gt.Value(t, l.History[1].Note).Equal("root cause fixed")
	})

	t.Run("note is mandatory", func(t *testing.T) {
		l := model.NewLifecycle()
		gt.Error(t, l.Apply(types.LifecycleAcknowledged, "alice", "  ", now)).Is(model.ErrValidation)
		gt.Value(t, l.State).Equal(types.LifecycleOpen)
		gt.Value(t, l.Version).Equal(1)
	})

	t.Run("actor is mandatory", func(t *testing.T) {
		l := model.NewLifecycle()
		gt.Error(t, l.Apply(types.LifecycleAcknowledged, "", "note", now)).Is(model.ErrValidation)
	})

	t.Run("second acknowledge reports already acknowledged", func(t *testing.T) {
		l := model.NewLifecycle()
		gt.NoError(t, l.Apply(types.LifecycleAcknowledged, "alice", "mine", now)).Required()
		err := l.Apply(types.LifecycleAcknowledged, "bob", "mine too", now)
		gt.Error(t, err).Is(model.ErrConcurrentModification)
		gt.String(t, err.Error()).Contains("already acknowledged")
	})

	t.Run("open cannot be resolved directly", func(t *testing.T) {
		l := model.NewLifecycle()
		gt.Error(t, l.Apply(types.LifecycleResolved, "alice", "skip", now)).Is(model.ErrValidation)
	})
}

func TestBreachAccept(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	newBreach := func() *model.Breach {
		return &model.Breach{ID: "b1", Lifecycle: model.NewLifecycle(), DetectedAt: now}
	}

	t.Run("accepted exception suppresses until expiry", func(t *testing.T) {
		b := newBreach()
		until := now.AddDate(0, 0, 90)
		gt.NoError(t, b.Accept("board", "accepted for Q2", until, now, 365)).Required()
		gt.Value(t, b.State).Equal(types.LifecycleAccepted)
		gt.Bool(t, b.Suppresses(now.AddDate(0, 0, 30))).True()
		gt.Bool(t, b.Suppresses(until.Add(time.Second))).False()
	})

	t.Run("window must be in the future", func(t *testing.T) {
		b := newBreach()
		gt.Error(t, b.Accept("board", "late", now.Add(-time.Hour), now, 365)).Is(model.ErrValidation)
		gt.Value(t, b.State).Equal(types.LifecycleOpen)
	})

	t.Run("window is bounded", func(t *testing.T) {
		b := newBreach()
		gt.Error(t, b.Accept("board", "forever", now.AddDate(2, 0, 0), now, 365)).Is(model.ErrValidation)
	})

	t.Run("resolved breach does not suppress", func(t *testing.T) {
		b := newBreach()
		gt.Bool(t, b.Suppresses(now)).True()
		gt.NoError(t, b.Apply(types.LifecycleAcknowledged, "alice", "ack", now)).Required()
		gt.NoError(t, b.Apply(types.LifecycleResolved, "alice", "done", now)).Required()
		gt.Bool(t, b.Suppresses(now)).False()
	})

	t.Run("clone does not share history", func(t *testing.T) {
		b := newBreach()
		c := b.Clone()
		gt.NoError(t, c.Apply(types.LifecycleAcknowledged, "alice", "ack", now)).Required()
		gt.Array(t, b.History).Length(0)
		gt.Value(t, b.State).Equal(types.LifecycleOpen)
	})
}
