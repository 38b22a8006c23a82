package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/repository/sqldb"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqldb.New(context.Background(), sqldb.Config{
		Driver: sqldb.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "register.db"),
	})
	if err != nil {
		t.Fatalf("failed to create sqlite repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close sqlite repository: %v", err)
		}
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	repo, err := sqldb.New(context.Background(), sqldb.Config{
		Driver:       sqldb.DriverPostgres,
		DSN:          dsn,
		MaxOpenConns: 10,
	})
	if err != nil {
		t.Fatalf("failed to create postgres repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close postgres repository: %v", err)
		}
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return newFirestoreRepositoryWith(t)
}

func newFirestoreRepositoryWith(t *testing.T, opts ...firestore.Option) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	opts = append([]firestore.Option{firestore.WithCollectionPrefix(prefix)}, opts...)
	repo, err := firestore.New(ctx, projectID, databaseID, opts...)
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

// newOrgID isolates tests that share a database server
func newOrgID() string {
	return "org-" + uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newRisk(orgID, id string) *model.Risk {
	ts := now()
	return &model.Risk{
		ID:                 id,
		OrgID:              orgID,
		Title:              "Payment outage " + id,
		Description:        "Card processing unavailable",
		CategoryID:         "operational",
		SubcategoryID:      "process-failure",
		Owner:              "alice",
		DivisionID:         "finance",
		InherentLikelihood: 4,
		InherentImpact:     5,
		Status:             types.RiskStatusOpen,
		IsActive:           true,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
}

func newControl(orgID, id string) *model.Control {
	ts := now()
	return &model.Control{
		ID:          id,
		OrgID:       orgID,
		Title:       "Failover " + id,
		Description: "Hot standby processor",
		Owner:       "bob",
		Type:        types.ControlTypePreventive,
		Target:      types.TargetBoth,
		Score:       model.DIMEScore{Design: 3, Implementation: 3, Monitoring: 2, Evaluation: 2},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func newIndicator(orgID, id, riskID string) *model.Indicator {
	ts := now()
	return &model.Indicator{
		ID:        id,
		OrgID:     orgID,
		Name:      "Failed payments " + id,
		RiskID:    riskID,
		Type:      types.IndicatorTypeLeading,
		Unit:      "%",
		Frequency: types.FrequencyMonthly,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func newStatement(orgID string) *model.AppetiteStatement {
	ts := now()
	return &model.AppetiteStatement{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Title:     "Risk appetite",
		Body:      "We accept moderate operational risk",
		Status:    types.StatementDraft,
		CreatedBy: "cro",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func newAppetiteCategory(orgID, statementID string) *model.AppetiteCategory {
	ts := now()
	return &model.AppetiteCategory{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		StatementID: statementID,
		CategoryID:  "operational",
		Level:       types.AppetiteModerate,
		Rationale:   "core business",
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func newTolerance(orgID, categoryID, indicatorID string) *model.ToleranceConfig {
	ts := now()
	return &model.ToleranceConfig{
		ID:                 uuid.NewString(),
		OrgID:              orgID,
		AppetiteCategoryID: categoryID,
		Name:               "Failed payment rate",
		MetricType:         types.MetricTypeMaximum,
		Thresholds:         model.Thresholds{Values: []float64{2, 5}},
		IndicatorID:        indicatorID,
		Materiality:        types.MaterialityInternal,
		Unit:               "%",
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
}

func newBreach(orgID, toleranceID string, detectedAt time.Time) *model.Breach {
	return &model.Breach{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		ToleranceID: toleranceID,
		Severity:    types.ToleranceRed,
		Value:       7,
		Lifecycle:   model.NewLifecycle(),
		DetectedAt:  detectedAt,
		UpdatedAt:   detectedAt,
	}
}

// commit runs a period commit built by model.BuildCommit
func commit(ctx context.Context, repo interfaces.Repository, orgID string, period types.Period) (*model.CommitPlan, error) {
	req := model.CommitRequest{OrgID: orgID, Period: period, Actor: "cro", Note: "quarter close", At: now()}
	return repo.Period().Commit(ctx, orgID, period, func(state *model.RegisterState) (*model.CommitPlan, error) {
		return model.BuildCommit(req, state, uuid.NewString)
	})
}
