package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func testRegisterConfig() *config.RegisterConfig {
	cfg := config.Default()
	cfg.Categories = []config.Category{
		{ID: "operational", Code: "OPS", Name: "Operational", Subcategories: []config.Subcategory{{ID: "process-failure", Name: "Process failure"}}},
	}
	cfg.Divisions = []config.Division{{ID: "finance", Code: "FIN", Name: "Finance"}}
	return cfg
}

func TestRiskValidate(t *testing.T) {
	cfg := testRegisterConfig()
	valid := func() *model.Risk {
		return &model.Risk{
			Title:              "Payment outage",
			CategoryID:         "operational",
			SubcategoryID:      "process-failure",
			DivisionID:         "finance",
			InherentLikelihood: 4,
			InherentImpact:     5,
			Status:             types.RiskStatusOpen,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *model.Risk)
		wantErr bool
	}{
		{"valid", func(r *model.Risk) {}, false},
		{"empty status normalizes", func(r *model.Risk) { r.Status = "" }, false},
		{"missing title", func(r *model.Risk) { r.Title = "" }, true},
		{"unknown category", func(r *model.Risk) { r.CategoryID = "strategic" }, true},
		{"subcategory as category", func(r *model.Risk) { r.CategoryID = "process-failure" }, true},
		{"foreign subcategory", func(r *model.Risk) { r.SubcategoryID = "fraud" }, true},
		{"unknown division", func(r *model.Risk) { r.DivisionID = "legal" }, true},
		{"likelihood too high", func(r *model.Risk) { r.InherentLikelihood = 6 }, true},
		{"impact zero", func(r *model.Risk) { r.InherentImpact = 0 }, true},
		{"negative incidents", func(r *model.Risk) { r.IncidentCount = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate(cfg)
			if tt.wantErr {
				gt.Error(t, err).Is(model.ErrValidation)
				return
			}
			gt.NoError(t, err)
		})
	}

	t.Run("six point scale", func(t *testing.T) {
		six := testRegisterConfig()
		six.Scale = config.Scale{LikelihoodMax: 6, ImpactMax: 6}
		r := valid()
		r.InherentLikelihood = 6
		gt.NoError(t, r.Validate(six))
	})
}
