package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/async"
	"github.com/secmon-lab/riskregister/pkg/utils/errutil"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type IndicatorUseCase struct {
	*core
	codes *CodeUseCase
}

// IndicatorInput carries the editable fields of an indicator
type IndicatorInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	RiskID      string              `json:"risk_id"`
	Type        types.IndicatorType `json:"type"`
	Unit        string              `json:"unit"`
	Frequency   types.Frequency     `json:"frequency"`
}

func (in IndicatorInput) apply(i *model.Indicator) {
	i.Name = in.Name
	i.Description = in.Description
	i.RiskID = in.RiskID
	i.Type = in.Type
	i.Unit = in.Unit
	i.Frequency = in.Frequency
}

// MeasurementInput is one value submitted for an indicator
type MeasurementInput struct {
	IndicatorID string            `json:"indicator_id"`
	Value       float64           `json:"value"`
	PeriodLabel string            `json:"period_label"`
	Quality     types.DataQuality `json:"quality"`
	RecordedBy  string            `json:"recorded_by"`
}

// MeasurementResult reports what recording a measurement caused. AlertID
// is set when the status is Yellow or Red, either to a new alert or to the
// one already open for the indicator.
type MeasurementResult struct {
	Measurement     *model.Measurement    `json:"measurement"`
	Status          types.AlertStatus     `json:"status"`
	ToleranceStatus types.ToleranceStatus `json:"tolerance_status"`
	AlertID         string                `json:"alert_id,omitempty"`
	AlertCreated    bool                  `json:"alert_created"`
	BreachID        string                `json:"breach_id,omitempty"`
	BreachCreated   bool                  `json:"breach_created"`
	// FollowUpErrors lists alerts or breaches that could not be raised.
	// The measurement itself is stored.
	FollowUpErrors []string `json:"follow_up_errors,omitempty"`
}

func (uc *IndicatorUseCase) checkRisk(ctx context.Context, orgID, riskID string) error {
	if riskID == "" {
		return nil
	}
	_, err := uc.repo.Risk().Get(ctx, orgID, riskID)
	if errors.Is(err, model.ErrNotFound) {
		return goerr.Wrap(model.ErrValidation, "indicator risk does not exist", goerr.V(model.RiskIDKey, riskID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to get indicator risk", goerr.V(model.RiskIDKey, riskID))
	}
	return nil
}

func (uc *IndicatorUseCase) CreateIndicator(ctx context.Context, orgID string, in IndicatorInput) (*model.Indicator, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	indicator := &model.Indicator{OrgID: orgID, CreatedAt: now, UpdatedAt: now}
	in.apply(indicator)
	if err := indicator.Validate(); err != nil {
		return nil, err
	}
	if err := uc.checkRisk(ctx, orgID, indicator.RiskID); err != nil {
		return nil, err
	}

	if _, err := uc.codes.createWithCode(ctx, orgID, []types.CodePart{uc.cfg.Codes.Indicator}, func(code string) error {
		indicator.ID = code
		return uc.repo.Indicator().Create(ctx, indicator)
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to create indicator", goerr.V(model.OrgIDKey, orgID))
	}
	return indicator, nil
}

func (uc *IndicatorUseCase) UpdateIndicator(ctx context.Context, orgID, id string, in IndicatorInput) (*model.Indicator, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	indicator, err := uc.repo.Indicator().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, id))
	}
	in.apply(indicator)
	indicator.UpdatedAt = uc.now()
	if err := indicator.Validate(); err != nil {
		return nil, err
	}
	if err := uc.checkRisk(ctx, orgID, indicator.RiskID); err != nil {
		return nil, err
	}
	if err := uc.repo.Indicator().Update(ctx, indicator); err != nil {
		return nil, goerr.Wrap(err, "failed to update indicator", goerr.V(model.IndicatorIDKey, id))
	}
	return indicator, nil
}

func (uc *IndicatorUseCase) GetIndicator(ctx context.Context, orgID, id string) (*model.Indicator, error) {
	indicator, err := uc.repo.Indicator().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, id))
	}
	return indicator, nil
}

func (uc *IndicatorUseCase) ListIndicators(ctx context.Context, orgID string) ([]*model.Indicator, error) {
	indicators, err := uc.repo.Indicator().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list indicators", goerr.V(model.OrgIDKey, orgID))
	}
	return indicators, nil
}

// DeleteIndicator fails while a tolerance configuration governs it
func (uc *IndicatorUseCase) DeleteIndicator(ctx context.Context, orgID, id string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if err := uc.repo.Indicator().Delete(ctx, orgID, id); err != nil {
		return goerr.Wrap(err, "failed to delete indicator", goerr.V(model.IndicatorIDKey, id))
	}
	return nil
}

// RecordMeasurement judges the value against the tolerance configuration
// governing the indicator, stores the measurement with that status and
// opens an alert and a breach when warranted. The stored status is never
// recalculated.
func (uc *IndicatorUseCase) RecordMeasurement(ctx context.Context, orgID string, in MeasurementInput) (*MeasurementResult, error) {
	ctx, span := tracer.Start(ctx, "RecordMeasurement", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("indicator_id", in.IndicatorID),
	))
	defer span.End()

	result, err := uc.recordMeasurement(ctx, orgID, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("status", result.Status.String()))
	return result, nil
}

func (uc *IndicatorUseCase) recordMeasurement(ctx context.Context, orgID string, in MeasurementInput) (*MeasurementResult, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}
	if err := model.ValidateValue(in.Value); err != nil {
		return nil, err
	}
	quality := in.Quality.Normalize()
	if !quality.IsValid() {
		return nil, goerr.Wrap(model.ErrValidation, "invalid data quality", goerr.V("quality", in.Quality))
	}
	if strings.TrimSpace(in.RecordedBy) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "recorder is required")
	}

	indicator, err := uc.repo.Indicator().Get(ctx, orgID, in.IndicatorID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, in.IndicatorID))
	}
	cfg, err := uc.repo.Tolerance().FindByIndicator(ctx, orgID, indicator.ID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(model.ErrValidation, "indicator has no tolerance configuration",
			goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find tolerance configuration", goerr.V(model.IndicatorIDKey, indicator.ID))
	}

	tolStatus, status, err := uc.judge(ctx, cfg, in.Value)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	m := &model.Measurement{
		ID:          uc.newID(),
		OrgID:       orgID,
		IndicatorID: indicator.ID,
		Value:       in.Value,
		PeriodLabel: in.PeriodLabel,
		Quality:     quality,
		Status:      status,
		RecordedBy:  in.RecordedBy,
		RecordedAt:  now,
	}
	if err := uc.repo.Indicator().AddMeasurement(ctx, m); err != nil {
		return nil, goerr.Wrap(err, "failed to store measurement", goerr.V(model.IndicatorIDKey, indicator.ID))
	}

	result := &MeasurementResult{Measurement: m, Status: status, ToleranceStatus: tolStatus}

	if status.RaisesAlert() {
		alert, created, err := uc.raiseAlert(ctx, indicator, m, now)
		if err != nil {
			result.FollowUpErrors = append(result.FollowUpErrors,
				followUpFailed(ctx, err, "failed to raise alert for stored measurement", m.ID))
		} else {
			result.AlertID = alert.ID
			result.AlertCreated = created
		}
	}
	if tolStatus.RaisesBreach() {
		breach, created, err := uc.raiseBreach(ctx, cfg, tolStatus, in.Value, now)
		if err != nil {
			result.FollowUpErrors = append(result.FollowUpErrors,
				followUpFailed(ctx, err, "failed to raise breach for stored measurement", m.ID))
		} else {
			result.BreachID = breach.ID
			result.BreachCreated = created
		}
	}

	logging.From(ctx).Info("measurement recorded",
		"org_id", orgID,
		"indicator_id", indicator.ID,
		"status", status,
		"alert_id", result.AlertID,
	)
	return result, nil
}

// followUpFailed reports an error raised after a measurement or reading
// was stored and returns the message handed back to the caller
func followUpFailed(ctx context.Context, err error, msg, recordID string) string {
	_ = errutil.Handle(ctx, goerr.Wrap(err, msg, goerr.V(RecordIDKey, recordID)), msg)
	return msg + ": " + err.Error()
}

// judge returns the tolerance and alert status of value. A directional
// metric compares against the previous measurement; the first one only
// sets the baseline and is Unknown.
func (uc *IndicatorUseCase) judge(ctx context.Context, cfg *model.ToleranceConfig, value float64) (types.ToleranceStatus, types.AlertStatus, error) {
	if cfg.MetricType == types.MetricTypeDirectional {
		var prior *float64
		latest, err := uc.repo.Indicator().ListMeasurements(ctx, cfg.OrgID, cfg.IndicatorID, 1)
		if err != nil {
			return "", "", goerr.Wrap(err, "failed to get previous measurement", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
		}
		if len(latest) > 0 {
			prior = &latest[0].Value
		}
		st, err := cfg.Evaluate(value, prior)
		if err != nil {
			return "", "", err
		}
		return st, st.AlertStatus(), nil
	}

	threshold, ok := cfg.IndicatorThreshold()
	if !ok {
		return "", "", goerr.Wrap(model.ErrInvalidThresholdConfiguration, "tolerance configuration cannot judge indicator values",
			goerr.V(model.ToleranceIDKey, cfg.ID))
	}
	status, err := model.EvaluateIndicator(value, threshold)
	if err != nil {
		return "", "", err
	}
	st, err := cfg.Evaluate(value, nil)
	if err != nil {
		return "", "", err
	}
	return st, status, nil
}

func (uc *IndicatorUseCase) raiseAlert(ctx context.Context, indicator *model.Indicator, m *model.Measurement, now time.Time) (*model.Alert, bool, error) {
	alert := &model.Alert{
		ID:            uc.newID(),
		OrgID:         indicator.OrgID,
		IndicatorID:   indicator.ID,
		MeasurementID: m.ID,
		Severity:      m.Status,
		Value:         m.Value,
		Lifecycle:     model.NewLifecycle(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	stored, created, err := uc.repo.Alert().CreateIfNoneActive(ctx, alert)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to open alert", goerr.V(model.IndicatorIDKey, indicator.ID))
	}

	if created && uc.notifier != nil {
		notified, ind := stored.Clone(), *indicator
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyAlert(ctx, notified, &ind)
		})
	}
	return stored, created, nil
}

func (uc *IndicatorUseCase) ListMeasurements(ctx context.Context, orgID, indicatorID string, limit int) ([]*model.Measurement, error) {
	ms, err := uc.repo.Indicator().ListMeasurements(ctx, orgID, indicatorID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list measurements", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	return ms, nil
}

func (uc *IndicatorUseCase) GetAlert(ctx context.Context, orgID, id string) (*model.Alert, error) {
	alert, err := uc.repo.Alert().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get alert", goerr.V(model.AlertIDKey, id))
	}
	return alert, nil
}

func (uc *IndicatorUseCase) ListAlerts(ctx context.Context, orgID string) ([]*model.Alert, error) {
	alerts, err := uc.repo.Alert().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list alerts", goerr.V(model.OrgIDKey, orgID))
	}
	return alerts, nil
}

// TransitionAlert moves an alert through its lifecycle. Of two concurrent
// callers reaching the same state, exactly one succeeds and the other gets
// model.ErrConcurrentModification.
func (uc *IndicatorUseCase) TransitionAlert(ctx context.Context, orgID, id string, next types.LifecycleState, actor, note string) (*model.Alert, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}
	if next == types.LifecycleAccepted {
		return nil, goerr.Wrap(model.ErrValidation, "alerts cannot be accepted as exceptions", goerr.V(model.AlertIDKey, id))
	}

	alert, err := uc.repo.Alert().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get alert", goerr.V(model.AlertIDKey, id))
	}

	expected := alert.Version
	now := uc.now()
	if err := alert.Apply(next, actor, note, now); err != nil {
		return nil, goerr.Wrap(err, "failed to transition alert", goerr.V(model.AlertIDKey, id))
	}
	alert.UpdatedAt = now
	if err := uc.repo.Alert().Update(ctx, alert, expected); err != nil {
		return nil, goerr.Wrap(err, "failed to store alert", goerr.V(model.AlertIDKey, id))
	}

	logging.From(ctx).Info("alert transitioned",
		"org_id", orgID, "alert_id", id, "state", next, "actor", actor)
	return alert, nil
}
