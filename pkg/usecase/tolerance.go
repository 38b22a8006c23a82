package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/async"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// statusConcurrency bounds the metric lookups of one roll-up
const statusConcurrency = 8

type ToleranceUseCase struct {
	*core
}

// ToleranceInput carries the editable fields of a tolerance configuration
type ToleranceInput struct {
	AppetiteCategoryID string            `json:"appetite_category_id"`
	Name               string            `json:"name"`
	MetricType         types.MetricType  `json:"metric_type"`
	Thresholds         model.Thresholds  `json:"thresholds"`
	IndicatorID        string            `json:"indicator_id"`
	Materiality        types.Materiality `json:"materiality"`
	Unit               string            `json:"unit"`
}

func (in ToleranceInput) apply(c *model.ToleranceConfig) {
	c.Name = in.Name
	c.MetricType = in.MetricType
	c.Thresholds = model.Thresholds{
		Values:       append([]float64(nil), in.Thresholds.Values...),
		BadDirection: in.Thresholds.BadDirection,
	}
	c.IndicatorID = in.IndicatorID
	c.Materiality = in.Materiality
	c.Unit = in.Unit
}

// ReadingInput is a manual value for a configuration not fed by an
// indicator
type ReadingInput struct {
	ToleranceID string  `json:"tolerance_id"`
	Value       float64 `json:"value"`
	PeriodLabel string  `json:"period_label"`
	RecordedBy  string  `json:"recorded_by"`
}

// ReadingResult reports the status of a manual reading and the breach it
// opened or joined
type ReadingResult struct {
	Reading       *model.ToleranceReading `json:"reading"`
	BreachID      string                  `json:"breach_id,omitempty"`
	BreachCreated bool                    `json:"breach_created"`
	// FollowUpErrors is set when the breach could not be raised. The
	// reading itself is stored.
	FollowUpErrors []string `json:"follow_up_errors,omitempty"`
}

// EvaluateToleranceMetric judges value against a configuration. It is
// pure; for DIRECTIONAL metrics value is the percentage change.
func (uc *ToleranceUseCase) EvaluateToleranceMetric(cfg *model.ToleranceConfig, value float64) (types.ToleranceStatus, error) {
	return model.EvaluateTolerance(value, cfg.MetricType, cfg.Thresholds)
}

// CreateTolerance validates the thresholds and stores the configuration.
// Invalid zones are rejected here, never at evaluation time.
func (uc *ToleranceUseCase) CreateTolerance(ctx context.Context, orgID string, in ToleranceInput) (*model.ToleranceConfig, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	cfg := &model.ToleranceConfig{
		ID:                 uc.newID(),
		OrgID:              orgID,
		AppetiteCategoryID: in.AppetiteCategoryID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	in.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := uc.checkBinding(ctx, cfg); err != nil {
		return nil, err
	}
	if err := uc.repo.Tolerance().Create(ctx, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to create tolerance configuration", goerr.V(model.OrgIDKey, orgID))
	}
	return cfg, nil
}

// UpdateTolerance replaces the thresholds and binding. Stored measurement
// statuses keep the value they were recorded with.
func (uc *ToleranceUseCase) UpdateTolerance(ctx context.Context, orgID, id string, in ToleranceInput) (*model.ToleranceConfig, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	cfg, err := uc.repo.Tolerance().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tolerance configuration", goerr.V(model.ToleranceIDKey, id))
	}
	in.apply(cfg)
	cfg.UpdatedAt = uc.now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := uc.checkBinding(ctx, cfg); err != nil {
		return nil, err
	}
	if err := uc.repo.Tolerance().Update(ctx, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to update tolerance configuration", goerr.V(model.ToleranceIDKey, id))
	}
	return cfg, nil
}

// checkBinding requires the appetite category to exist and allows at most
// one configuration per indicator
func (uc *ToleranceUseCase) checkBinding(ctx context.Context, cfg *model.ToleranceConfig) error {
	if _, err := uc.repo.Appetite().GetCategory(ctx, cfg.OrgID, cfg.AppetiteCategoryID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return goerr.Wrap(model.ErrValidation, "unknown appetite category", goerr.V("appetite_category_id", cfg.AppetiteCategoryID))
		}
		return goerr.Wrap(err, "failed to get appetite category")
	}
	if cfg.IndicatorID == "" {
		return nil
	}

	if _, err := uc.repo.Indicator().Get(ctx, cfg.OrgID, cfg.IndicatorID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return goerr.Wrap(model.ErrValidation, "unknown indicator", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
		}
		return goerr.Wrap(err, "failed to get indicator")
	}
	bound, err := uc.repo.Tolerance().FindByIndicator(ctx, cfg.OrgID, cfg.IndicatorID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil
	case err != nil:
		return goerr.Wrap(err, "failed to find tolerance configuration", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	case bound.ID != cfg.ID:
		return goerr.Wrap(model.ErrConflict, "indicator is already governed by another configuration",
			goerr.V(model.IndicatorIDKey, cfg.IndicatorID), goerr.V(model.ToleranceIDKey, bound.ID))
	}
	return nil
}

func (uc *ToleranceUseCase) DeleteTolerance(ctx context.Context, orgID, id string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if err := uc.repo.Tolerance().Delete(ctx, orgID, id); err != nil {
		return goerr.Wrap(err, "failed to delete tolerance configuration", goerr.V(model.ToleranceIDKey, id))
	}
	return nil
}

func (uc *ToleranceUseCase) GetTolerance(ctx context.Context, orgID, id string) (*model.ToleranceConfig, error) {
	cfg, err := uc.repo.Tolerance().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tolerance configuration", goerr.V(model.ToleranceIDKey, id))
	}
	return cfg, nil
}

func (uc *ToleranceUseCase) ListTolerances(ctx context.Context, orgID string) ([]*model.ToleranceConfig, error) {
	list, err := uc.repo.Tolerance().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tolerance configurations", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

// RecordReading stores a manual value for a configuration without an
// indicator and opens a breach when it is Amber or Red
func (uc *ToleranceUseCase) RecordReading(ctx context.Context, orgID string, in ReadingInput) (*ReadingResult, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}
	if err := model.ValidateValue(in.Value); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.RecordedBy) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "recorder is required")
	}

	cfg, err := uc.repo.Tolerance().Get(ctx, orgID, in.ToleranceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tolerance configuration", goerr.V(model.ToleranceIDKey, in.ToleranceID))
	}
	if cfg.IndicatorID != "" {
		return nil, goerr.Wrap(model.ErrValidation, "configuration is fed by an indicator, record a measurement instead",
			goerr.V(model.ToleranceIDKey, cfg.ID), goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	}

	var prior *float64
	if cfg.MetricType == types.MetricTypeDirectional {
		latest, err := uc.repo.Tolerance().ListReadings(ctx, orgID, cfg.ID, 1)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get previous reading", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		if len(latest) > 0 {
			prior = &latest[0].Value
		}
	}
	status, err := cfg.Evaluate(in.Value, prior)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	reading := &model.ToleranceReading{
		ID:          uc.newID(),
		OrgID:       orgID,
		ToleranceID: cfg.ID,
		Value:       in.Value,
		Status:      status,
		PeriodLabel: in.PeriodLabel,
		RecordedBy:  in.RecordedBy,
		RecordedAt:  now,
	}
	if err := uc.repo.Tolerance().AddReading(ctx, reading); err != nil {
		return nil, goerr.Wrap(err, "failed to store reading", goerr.V(model.ToleranceIDKey, cfg.ID))
	}

	result := &ReadingResult{Reading: reading}
	if status.RaisesBreach() {
		breach, created, err := uc.raiseBreach(ctx, cfg, status, in.Value, now)
		if err != nil {
			result.FollowUpErrors = append(result.FollowUpErrors,
				followUpFailed(ctx, err, "failed to raise breach for stored reading", reading.ID))
		} else {
			result.BreachID = breach.ID
			result.BreachCreated = created
		}
	}
	return result, nil
}

// raiseBreach opens a breach unless an active breach or an accepted
// exception of the same configuration suppresses it
func (c *core) raiseBreach(ctx context.Context, cfg *model.ToleranceConfig, status types.ToleranceStatus, value float64, at time.Time) (*model.Breach, bool, error) {
	breach := &model.Breach{
		ID:          c.newID(),
		OrgID:       cfg.OrgID,
		ToleranceID: cfg.ID,
		IndicatorID: cfg.IndicatorID,
		Severity:    status,
		Value:       value,
		Lifecycle:   model.NewLifecycle(),
		DetectedAt:  at,
		UpdatedAt:   at,
	}
	stored, created, err := c.repo.Breach().CreateIfNotSuppressed(ctx, breach)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to open breach", goerr.V(model.ToleranceIDKey, cfg.ID))
	}

	if created {
		logging.From(ctx).Warn("tolerance breached",
			"org_id", cfg.OrgID, "tolerance_id", cfg.ID, "severity", status, "value", value)
		if c.notifier != nil {
			notified, governing := stored.Clone(), cfg.Clone()
			async.Dispatch(ctx, func(ctx context.Context) error {
				return c.notifier.NotifyBreach(ctx, notified, governing)
			})
		}
	}
	return stored, created, nil
}

func (uc *ToleranceUseCase) GetBreach(ctx context.Context, orgID, id string) (*model.Breach, error) {
	b, err := uc.repo.Breach().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get breach", goerr.V(model.BreachIDKey, id))
	}
	return b, nil
}

func (uc *ToleranceUseCase) ListBreaches(ctx context.Context, orgID string) ([]*model.Breach, error) {
	list, err := uc.repo.Breach().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list breaches", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

// TransitionBreach moves a breach through the alert lifecycle. Use
// AcceptBreach for board-accepted exceptions.
func (uc *ToleranceUseCase) TransitionBreach(ctx context.Context, orgID, id string, next types.LifecycleState, actor, note string) (*model.Breach, error) {
	if next == types.LifecycleAccepted {
		return nil, goerr.Wrap(model.ErrValidation, "accepting a breach needs an exception window", goerr.V(model.BreachIDKey, id))
	}
	return uc.updateBreach(ctx, orgID, id, func(b *model.Breach, now time.Time) error {
		return b.Apply(next, actor, note, now)
	})
}

// AcceptBreach records a board-accepted exception. No new breach of the
// configuration is opened until the window ends.
func (uc *ToleranceUseCase) AcceptBreach(ctx context.Context, orgID, id, actor, note string, until time.Time) (*model.Breach, error) {
	return uc.updateBreach(ctx, orgID, id, func(b *model.Breach, now time.Time) error {
		return b.Accept(actor, note, until.UTC(), now, uc.cfg.MaxExceptionDays)
	})
}

func (uc *ToleranceUseCase) updateBreach(ctx context.Context, orgID, id string, transition func(b *model.Breach, now time.Time) error) (*model.Breach, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	b, err := uc.repo.Breach().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get breach", goerr.V(model.BreachIDKey, id))
	}

	expected := b.Version
	now := uc.now()
	if err := transition(b, now); err != nil {
		return nil, goerr.Wrap(err, "failed to transition breach", goerr.V(model.BreachIDKey, id))
	}
	b.UpdatedAt = now
	if err := uc.repo.Breach().Update(ctx, b, expected); err != nil {
		return nil, goerr.Wrap(err, "failed to store breach", goerr.V(model.BreachIDKey, id))
	}

	logging.From(ctx).Info("breach transitioned", "org_id", orgID, "breach_id", id, "state", b.State)
	return b, nil
}

// GetEnterpriseAppetiteStatus folds the latest data of every tolerance
// metric into category and enterprise statuses. Each top-level category
// is judged under the approved statement in force that sets an appetite
// for it. Metrics without data are Unknown and counted apart.
func (uc *ToleranceUseCase) GetEnterpriseAppetiteStatus(ctx context.Context, orgID string) (*model.EnterpriseStatus, error) {
	ctx, span := tracer.Start(ctx, "GetEnterpriseAppetiteStatus", trace.WithAttributes(attribute.String("org_id", orgID)))
	defer span.End()

	var (
		statements []*model.AppetiteStatement
		categories []*model.AppetiteCategory
		tolerances []*model.ToleranceConfig
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		statements, err = uc.repo.Appetite().ListStatements(egCtx, orgID)
		return err
	})
	eg.Go(func() error {
		var err error
		categories, err = uc.repo.Appetite().ListCategories(egCtx, orgID)
		return err
	})
	eg.Go(func() error {
		var err error
		tolerances, err = uc.repo.Tolerance().List(egCtx, orgID)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, goerr.Wrap(err, "failed to load appetite", goerr.V(model.OrgIDKey, orgID))
	}

	current := currentCategories(statements, categories, uc.now())
	byCategory := make(map[string][]*model.ToleranceConfig)
	for _, t := range tolerances {
		byCategory[t.AppetiteCategoryID] = append(byCategory[t.AppetiteCategoryID], t)
	}

	metrics := make([][]model.MetricStatus, len(current))
	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(statusConcurrency)
	for i, cat := range current {
		cfgs := byCategory[cat.ID]
		metrics[i] = make([]model.MetricStatus, len(cfgs))
		for j, cfg := range cfgs {
			eg.Go(func() error {
				ms, err := uc.metricStatus(egCtx, cfg)
				if err != nil {
					return err
				}
				metrics[i][j] = ms
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, goerr.Wrap(err, "failed to load metric status", goerr.V(model.OrgIDKey, orgID))
	}

	results := make([]model.CategoryStatus, len(current))
	for i, cat := range current {
		results[i] = model.RollupCategory(cat, metrics[i])
	}
	status := model.RollupEnterprise(orgID, results)
	span.SetAttributes(attribute.String("status", status.Status.String()))
	return &status, nil
}

// currentCategories keeps, per taxonomy category, the appetite set by the
// highest-versioned statement in force at now. Superseded statements never
// count, so a category dropped by the latest statement drops out.
func currentCategories(statements []*model.AppetiteStatement, categories []*model.AppetiteCategory, now time.Time) []*model.AppetiteCategory {
	inForce := make(map[string]*model.AppetiteStatement, len(statements))
	for _, s := range statements {
		if s.InForce(now) {
			inForce[s.ID] = s
		}
	}

	best := make(map[types.CategoryID]*model.AppetiteCategory)
	version := make(map[types.CategoryID]int)
	for _, c := range categories {
		s, ok := inForce[c.StatementID]
		if !ok {
			continue
		}
		if _, seen := best[c.CategoryID]; !seen || s.Version > version[c.CategoryID] {
			best[c.CategoryID] = c
			version[c.CategoryID] = s.Version
		}
	}

	result := make([]*model.AppetiteCategory, 0, len(best))
	for _, c := range best {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CategoryID < result[j].CategoryID })
	return result
}

// metricStatus judges the latest value of a configuration against its
// current thresholds
func (uc *ToleranceUseCase) metricStatus(ctx context.Context, cfg *model.ToleranceConfig) (model.MetricStatus, error) {
	ms := model.MetricStatus{
		ToleranceID: cfg.ID,
		Name:        cfg.Name,
		MetricType:  cfg.MetricType,
		Status:      types.ToleranceUnknown,
	}

	type point struct {
		value float64
		at    time.Time
	}
	var points []point
	if cfg.IndicatorID != "" {
		list, err := uc.repo.Indicator().ListMeasurements(ctx, cfg.OrgID, cfg.IndicatorID, 2)
		if err != nil {
			return ms, goerr.Wrap(err, "failed to list measurements", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
		}
		for _, m := range list {
			points = append(points, point{value: m.Value, at: m.RecordedAt})
		}
	} else {
		list, err := uc.repo.Tolerance().ListReadings(ctx, cfg.OrgID, cfg.ID, 2)
		if err != nil {
			return ms, goerr.Wrap(err, "failed to list readings", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		for _, r := range list {
			points = append(points, point{value: r.Value, at: r.RecordedAt})
		}
	}
	if len(points) == 0 {
		return ms, nil
	}

	latest := points[0]
	ms.Value = &latest.value
	ms.MeasuredAt = &latest.at

	var prior *float64
	if len(points) > 1 {
		prior = &points[1].value
	}
	status, err := cfg.Evaluate(latest.value, prior)
	if err != nil {
		return ms, goerr.Wrap(err, "failed to evaluate metric", goerr.V(model.ToleranceIDKey, cfg.ID))
	}
	ms.Status = status
	return ms, nil
}
