package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

// StatusSource computes the enterprise appetite roll-up of an organization
type StatusSource interface {
	GetEnterpriseAppetiteStatus(ctx context.Context, orgID string) (*model.EnterpriseStatus, error)
}

// StatusChangeHandler is called when an organization's enterprise status
// differs from the last one observed. prev is empty on the first
// observation.
type StatusChangeHandler func(ctx context.Context, orgID string, prev types.ToleranceStatus, next *model.EnterpriseStatus)

// StatusWatchWorker periodically recomputes the enterprise appetite status
// of a fixed set of organizations and reports changes
//
// Architecture assumptions:
// - Single server instance; each instance watches independently
// - Observed statuses live in memory and are lost on restart
type StatusWatchWorker struct {
	source   StatusSource
	orgs     []string
	interval time.Duration
	onChange StatusChangeHandler

	mu   sync.Mutex
	last map[string]types.ToleranceStatus

	stopCh chan struct{}
	doneCh chan struct{}
}

type StatusWatchOption func(*StatusWatchWorker)

// WithStatusChangeHandler replaces the default handler, which logs changes
func WithStatusChangeHandler(h StatusChangeHandler) StatusWatchOption {
	return func(w *StatusWatchWorker) {
		w.onChange = h
	}
}

// NewStatusWatchWorker creates a worker watching orgs every interval
func NewStatusWatchWorker(source StatusSource, orgs []string, interval time.Duration, opts ...StatusWatchOption) *StatusWatchWorker {
	w := &StatusWatchWorker{
		source:   source,
		orgs:     orgs,
		interval: interval,
		onChange: logStatusChange,
		last:     make(map[string]types.ToleranceStatus),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background watch loop without blocking
func (w *StatusWatchWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("status watch interval must be positive", goerr.V("interval", w.interval))
	}
	logging.Default().Info("Appetite status watch starting",
		"interval", w.interval.String(),
		"orgs", w.orgs)

	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *StatusWatchWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Appetite status watch stopped")
}

func (w *StatusWatchWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.checkAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkAll(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *StatusWatchWorker) checkAll(ctx context.Context) {
	for _, orgID := range w.orgs {
		if err := w.check(ctx, orgID); err != nil {
			// next tick retries
			logging.Default().Error("Appetite status check failed",
				"org_id", orgID,
				"error", err.Error())
		}
	}
}

func (w *StatusWatchWorker) check(ctx context.Context, orgID string) error {
	status, err := w.source.GetEnterpriseAppetiteStatus(ctx, orgID)
	if err != nil {
		return goerr.Wrap(err, "failed to get enterprise appetite status", goerr.V(model.OrgIDKey, orgID))
	}

	w.mu.Lock()
	prev, seen := w.last[orgID]
	w.last[orgID] = status.Status
	w.mu.Unlock()

	if !seen || prev != status.Status {
		w.onChange(ctx, orgID, prev, status)
	}
	return nil
}

func logStatusChange(ctx context.Context, orgID string, prev types.ToleranceStatus, next *model.EnterpriseStatus) {
	logger := logging.From(ctx)
	args := []any{
		"org_id", orgID,
		"previous", prev,
		"status", next.Status,
		"unknown_categories", next.UnknownCategories,
	}
	if next.Status.RaisesBreach() {
		logger.Warn("Enterprise appetite status changed", args...)
		return
	}
	logger.Info("Enterprise appetite status changed", args...)
}
