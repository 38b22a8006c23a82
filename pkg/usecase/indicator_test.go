package usecase_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

func record(t *testing.T, uc *usecase.UseCases, indicatorID string, value float64) *usecase.MeasurementResult {
	t.Helper()
	res, err := uc.Indicator.RecordMeasurement(context.Background(), testOrgID, usecase.MeasurementInput{
		IndicatorID: indicatorID,
		Value:       value,
		PeriodLabel: "2026-04",
		RecordedBy:  "bob",
	})
	gt.NoError(t, err).Required()
	return res
}

func TestIndicatorUseCase_CreateIndicator(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()
	risk := createRisk(t, uc, 3, 3)

	ind := createIndicator(t, uc, risk.ID)
	gt.Value(t, ind.ID).Equal("KRI-001")

	t.Run("unknown risk is rejected", func(t *testing.T) {
		_, err := uc.Indicator.CreateIndicator(ctx, testOrgID, usecase.IndicatorInput{
			Name:      "Orphan",
			RiskID:    "FIN-OPS-999",
			Type:      types.IndicatorTypeLagging,
			Frequency: types.FrequencyWeekly,
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("unknown frequency is rejected", func(t *testing.T) {
		_, err := uc.Indicator.CreateIndicator(ctx, testOrgID, usecase.IndicatorInput{
			Name:      "Odd",
			Type:      types.IndicatorTypeLagging,
			Frequency: "HOURLY",
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestIndicatorUseCase_RecordMeasurement(t *testing.T) {
	setup := func(t *testing.T, metric types.MetricType, th model.Thresholds) (*usecase.UseCases, *model.Indicator, *model.ToleranceConfig, *mockNotifier) {
		notifier := newMockNotifier()
		uc, _ := newTestUseCases(t, usecase.WithNotifier(notifier))
		risk := createRisk(t, uc, 3, 3)
		ind := createIndicator(t, uc, risk.ID)
		cat := approvedCategory(t, uc)
		cfg := createTolerance(t, uc, cat.ID, ind.ID, metric, th)
		return uc, ind, cfg, notifier
	}

	t.Run("amber value opens one alert and one breach", func(t *testing.T) {
		uc, ind, cfg, notifier := setup(t, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})

		first := record(t, uc, ind.ID, 85)
		gt.Value(t, first.Status).Equal(types.AlertStatusYellow)
		gt.Value(t, first.ToleranceStatus).Equal(types.ToleranceAmber)
		gt.Value(t, first.Measurement.Status).Equal(types.AlertStatusYellow)
		gt.Bool(t, first.AlertCreated).True()
		gt.Bool(t, first.BreachCreated).True()
		notifier.wait(t, 2)

		second := record(t, uc, ind.ID, 95)
		gt.Value(t, second.Status).Equal(types.AlertStatusRed)
		gt.Value(t, second.AlertID).Equal(first.AlertID)
		gt.Bool(t, second.AlertCreated).False()
		gt.Value(t, second.BreachID).Equal(first.BreachID)
		gt.Bool(t, second.BreachCreated).False()

		alerts, err := uc.Indicator.ListAlerts(context.Background(), testOrgID)
		gt.NoError(t, err).Required()
		gt.Array(t, alerts).Length(1)

		breach, err := uc.Tolerance.GetBreach(context.Background(), testOrgID, first.BreachID)
		gt.NoError(t, err).Required()
		gt.Value(t, breach.ToleranceID).Equal(cfg.ID)
		gt.Value(t, breach.IndicatorID).Equal(ind.ID)
	})

	t.Run("green value raises nothing", func(t *testing.T) {
		uc, ind, _, _ := setup(t, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})

		res := record(t, uc, ind.ID, 70)
		gt.Value(t, res.Status).Equal(types.AlertStatusGreen)
		gt.Value(t, res.AlertID).Equal("")
		gt.Value(t, res.BreachID).Equal("")
	})

	t.Run("range warning band is yellow", func(t *testing.T) {
		uc, ind, _, _ := setup(t, types.MetricTypeRange, model.Thresholds{Values: []float64{10, 20, 30, 40}})

		gt.Value(t, record(t, uc, ind.ID, 25).Status).Equal(types.AlertStatusGreen)
		gt.Value(t, record(t, uc, ind.ID, 15).Status).Equal(types.AlertStatusYellow)
		gt.Value(t, record(t, uc, ind.ID, 41).Status).Equal(types.AlertStatusRed)
	})

	t.Run("directional metric compares with the previous value", func(t *testing.T) {
		uc, ind, _, _ := setup(t, types.MetricTypeDirectional, model.Thresholds{
			Values:       []float64{10, 0.5},
			BadDirection: types.ChangeIncrease,
		})

		baseline := record(t, uc, ind.ID, 100)
		gt.Value(t, baseline.Status).Equal(types.AlertStatusUnknown)
		gt.Value(t, baseline.AlertID).Equal("")

		fall := record(t, uc, ind.ID, 80)
		gt.Value(t, fall.Status).Equal(types.AlertStatusGreen)

		rise := record(t, uc, ind.ID, 86)
		gt.Value(t, rise.ToleranceStatus).Equal(types.ToleranceAmber)
		gt.Value(t, rise.Status).Equal(types.AlertStatusYellow)

		jump := record(t, uc, ind.ID, 100)
		gt.Value(t, jump.ToleranceStatus).Equal(types.ToleranceRed)
	})

	t.Run("stored status is not recalculated after a threshold change", func(t *testing.T) {
		uc, ind, cfg, _ := setup(t, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})
		ctx := context.Background()
		record(t, uc, ind.ID, 60)

		_, err := uc.Tolerance.UpdateTolerance(ctx, testOrgID, cfg.ID, usecase.ToleranceInput{
			AppetiteCategoryID: cfg.AppetiteCategoryID,
			Name:               cfg.Name,
			MetricType:         types.MetricTypeMaximum,
			Thresholds:         model.Thresholds{Values: []float64{10, 20}},
			IndicatorID:        ind.ID,
			Materiality:        types.MaterialityInternal,
		})
		gt.NoError(t, err).Required()

		ms, err := uc.Indicator.ListMeasurements(ctx, testOrgID, ind.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, ms).Length(1).Required()
		gt.Value(t, ms[0].Status).Equal(types.AlertStatusGreen)
	})

	t.Run("indicator without tolerance is rejected", func(t *testing.T) {
		uc, _ := newTestUseCases(t)
		ind := createIndicator(t, uc, "")

		_, err := uc.Indicator.RecordMeasurement(context.Background(), testOrgID, usecase.MeasurementInput{
			IndicatorID: ind.ID,
			Value:       1,
			RecordedBy:  "bob",
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("non-finite and unattributed values are rejected", func(t *testing.T) {
		uc, ind, _, _ := setup(t, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})
		ctx := context.Background()

		for _, v := range []float64{math.NaN(), math.Inf(1)} {
			_, err := uc.Indicator.RecordMeasurement(ctx, testOrgID, usecase.MeasurementInput{
				IndicatorID: ind.ID,
				Value:       v,
				RecordedBy:  "bob",
			})
			gt.Error(t, err).Is(model.ErrValidation)
		}

		_, err := uc.Indicator.RecordMeasurement(ctx, testOrgID, usecase.MeasurementInput{IndicatorID: ind.ID, Value: 1})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestIndicatorUseCase_TransitionAlert(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()
	ind := createIndicator(t, uc, "")
	cat := approvedCategory(t, uc)
	createTolerance(t, uc, cat.ID, ind.ID, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})

	res := record(t, uc, ind.ID, 99)
	gt.Bool(t, res.AlertCreated).True()

	t.Run("second identical transition loses", func(t *testing.T) {
		acked, err := uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleAcknowledged, "carol", "looking")
		gt.NoError(t, err).Required()
		gt.Value(t, acked.State).Equal(types.LifecycleAcknowledged)
		gt.Number(t, acked.Version).Equal(2)

		_, err = uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleAcknowledged, "dave", "me too")
		gt.Error(t, err).Is(model.ErrConcurrentModification)
	})

	t.Run("accept is not an alert transition", func(t *testing.T) {
		_, err := uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleAccepted, "carol", "fine")
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("note is required", func(t *testing.T) {
		_, err := uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleResolved, "carol", "")
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("resolved alert lets a new one open", func(t *testing.T) {
		resolved, err := uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleResolved, "carol", "fixed")
		gt.NoError(t, err).Required()
		gt.Array(t, resolved.History).Length(2)

		_, err = uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleOpen, "carol", "reopen")
		gt.Error(t, err).Is(model.ErrValidation)

		next := record(t, uc, ind.ID, 80)
		gt.Bool(t, next.AlertCreated).True()
		gt.Value(t, next.AlertID).NotEqual(res.AlertID)
	})
}

func TestIndicatorUseCase_ConcurrentTransitions(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()
	ind := createIndicator(t, uc, "")
	cat := approvedCategory(t, uc)
	createTolerance(t, uc, cat.ID, ind.ID, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})
	res := record(t, uc, ind.ID, 99)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = uc.Indicator.TransitionAlert(ctx, testOrgID, res.AlertID, types.LifecycleAcknowledged, "carol", "ack")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		gt.Error(t, err).Is(model.ErrConcurrentModification)
	}
	gt.Number(t, succeeded).Equal(1)
}

type brokenAlertRepository struct {
	interfaces.AlertRepository
}

func (brokenAlertRepository) CreateIfNoneActive(ctx context.Context, alert *model.Alert) (*model.Alert, bool, error) {
	return nil, false, errors.New("alert store unavailable")
}

// alertlessRepository stores everything but alerts
type alertlessRepository struct {
	*memory.Memory
}

func (r alertlessRepository) Alert() interfaces.AlertRepository {
	return brokenAlertRepository{AlertRepository: r.Memory.Alert()}
}

func TestIndicatorUseCase_RecordMeasurementFollowUpFailure(t *testing.T) {
	ctx := context.Background()
	repo := alertlessRepository{Memory: memory.New()}
	uc := usecase.New(repo, usecase.WithRegisterConfig(testRegisterConfig()), usecase.WithClock(testClock()))

	ind := createIndicator(t, uc, "")
	cat := approvedCategory(t, uc)
	createTolerance(t, uc, cat.ID, ind.ID, types.MetricTypeMaximum, model.Thresholds{Values: []float64{70, 90}})

	res, err := uc.Indicator.RecordMeasurement(ctx, testOrgID, usecase.MeasurementInput{
		IndicatorID: ind.ID,
		Value:       95,
		PeriodLabel: "2026-04",
		RecordedBy:  "bob",
	})
	gt.NoError(t, err).Required()
	gt.Value(t, res.Measurement).NotNil().Required()
	gt.Value(t, res.AlertID).Equal("")
	gt.A(t, res.FollowUpErrors).Length(1).Required()
	gt.String(t, res.FollowUpErrors[0]).Contains("alert store unavailable")

	gt.Bool(t, res.BreachCreated).True()

	stored, err := uc.Indicator.ListMeasurements(ctx, testOrgID, ind.ID, 10)
	gt.NoError(t, err).Required()
	gt.A(t, stored).Length(1).Required()
	gt.Value(t, stored[0].ID).Equal(res.Measurement.ID)
}
