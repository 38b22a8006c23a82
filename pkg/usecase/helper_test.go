package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

const testOrgID = "test-org"

var baseTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func testRegisterConfig() *config.RegisterConfig {
	cfg := config.Default()
	cfg.Categories = []config.Category{
		{
			ID:   "operational",
			Code: "OPS",
			Name: "Operational",
			Subcategories: []config.Subcategory{
				{ID: "process-failure", Name: "Process failure"},
			},
		},
		{ID: "technology", Code: "TEC", Name: "Technology"},
	}
	cfg.Divisions = []config.Division{
		{ID: "finance", Code: "FIN", Name: "Finance"},
		{ID: "it", Code: "IT", Name: "IT"},
	}
	return cfg
}

// testClock returns a clock that advances one second per call
func testClock() func() time.Time {
	var mu sync.Mutex
	now := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestUseCases(t *testing.T, opts ...usecase.Option) (*usecase.UseCases, *memory.Memory) {
	t.Helper()
	repo := memory.New()
	base := []usecase.Option{
		usecase.WithRegisterConfig(testRegisterConfig()),
		usecase.WithClock(testClock()),
	}
	return usecase.New(repo, append(base, opts...)...), repo
}

func createRisk(t *testing.T, uc *usecase.UseCases, likelihood, impact int) *model.Risk {
	t.Helper()
	risk, err := uc.Risk.CreateRisk(context.Background(), testOrgID, usecase.RiskInput{
		Title:              "Payment batch fails",
		CategoryID:         "operational",
		DivisionID:         "finance",
		Owner:              "alice",
		InherentLikelihood: likelihood,
		InherentImpact:     impact,
	})
	gt.NoError(t, err).Required()
	return risk
}

func createControl(t *testing.T, uc *usecase.UseCases, target types.TargetDimension, score model.DIMEScore) *model.Control {
	t.Helper()
	control, err := uc.Control.CreateControl(context.Background(), testOrgID, usecase.ControlInput{
		Title:  "Four-eyes approval",
		Type:   types.ControlTypePreventive,
		Target: target,
		Score:  score,
	})
	gt.NoError(t, err).Required()
	return control
}

func createIndicator(t *testing.T, uc *usecase.UseCases, riskID string) *model.Indicator {
	t.Helper()
	ind, err := uc.Indicator.CreateIndicator(context.Background(), testOrgID, usecase.IndicatorInput{
		Name:      "Failed payments",
		RiskID:    riskID,
		Type:      types.IndicatorTypeLeading,
		Unit:      "count",
		Frequency: types.FrequencyMonthly,
	})
	gt.NoError(t, err).Required()
	return ind
}

// approvedCategory creates an approved statement with an appetite for the
// operational category
func approvedCategory(t *testing.T, uc *usecase.UseCases) *model.AppetiteCategory {
	t.Helper()
	ctx := context.Background()
	s, err := uc.Appetite.CreateStatement(ctx, testOrgID, "board", usecase.StatementInput{Title: "FY26 appetite"})
	gt.NoError(t, err).Required()
	_, err = uc.Appetite.ApproveStatement(ctx, testOrgID, s.ID, "chair")
	gt.NoError(t, err).Required()

	cat, err := uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
		StatementID: s.ID,
		CategoryID:  "operational",
		Level:       types.AppetiteLow,
	})
	gt.NoError(t, err).Required()
	return cat
}

func createTolerance(t *testing.T, uc *usecase.UseCases, categoryID, indicatorID string, metric types.MetricType, th model.Thresholds) *model.ToleranceConfig {
	t.Helper()
	cfg, err := uc.Tolerance.CreateTolerance(context.Background(), testOrgID, usecase.ToleranceInput{
		AppetiteCategoryID: categoryID,
		Name:               "Failed payments per month",
		MetricType:         metric,
		Thresholds:         th,
		IndicatorID:        indicatorID,
		Materiality:        types.MaterialityInternal,
	})
	gt.NoError(t, err).Required()
	return cfg
}

type mockNotifier struct {
	mu       sync.Mutex
	alerts   []*model.Alert
	breaches []*model.Breach
	commits  []*model.PeriodCommit
	notified chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{notified: make(chan struct{}, 16)}
}

func (m *mockNotifier) NotifyAlert(ctx context.Context, alert *model.Alert, indicator *model.Indicator) error {
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
	m.notified <- struct{}{}
	return nil
}

func (m *mockNotifier) NotifyBreach(ctx context.Context, breach *model.Breach, cfg *model.ToleranceConfig) error {
	m.mu.Lock()
	m.breaches = append(m.breaches, breach)
	m.mu.Unlock()
	m.notified <- struct{}{}
	return nil
}

func (m *mockNotifier) NotifyCommit(ctx context.Context, commit *model.PeriodCommit) error {
	m.mu.Lock()
	m.commits = append(m.commits, commit)
	m.mu.Unlock()
	m.notified <- struct{}{}
	return nil
}

// wait blocks until n notifications were delivered
func (m *mockNotifier) wait(t *testing.T, n int) {
	t.Helper()
	for range n {
		select {
		case <-m.notified:
		case <-time.After(3 * time.Second):
			t.Fatal("notification was not delivered")
		}
	}
}

type mockSuggester struct {
	SuggestThresholdsFunc func(ctx context.Context, indicator *model.Indicator, history []*model.Measurement) ([]model.ThresholdSuggestion, error)
	SuggestControlsFunc   func(ctx context.Context, risk *model.Risk, existing []*model.Control) ([]model.ControlSuggestion, error)
}

func (m *mockSuggester) SuggestThresholds(ctx context.Context, indicator *model.Indicator, history []*model.Measurement) ([]model.ThresholdSuggestion, error) {
	return m.SuggestThresholdsFunc(ctx, indicator, history)
}

func (m *mockSuggester) SuggestControls(ctx context.Context, risk *model.Risk, existing []*model.Control) ([]model.ControlSuggestion, error) {
	return m.SuggestControlsFunc(ctx, risk, existing)
}

type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, commit *model.PeriodCommit, snapshots []*model.RiskSnapshot) error
}

func (m *mockArchiver) Archive(ctx context.Context, commit *model.PeriodCommit, snapshots []*model.RiskSnapshot) error {
	return m.ArchiveFunc(ctx, commit, snapshots)
}
