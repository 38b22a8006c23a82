package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
)

func TestRegisterConfigLookup(t *testing.T) {
	cfg := config.Default()
	cfg.Categories = []config.Category{
		{ID: "operational", Code: "OPS", Subcategories: []config.Subcategory{{ID: "process-failure"}}},
	}
	cfg.Divisions = []config.Division{{ID: "finance", Code: "FIN"}}

	cat := cfg.FindCategory("operational")
	gt.Value(t, cat).NotNil()
	gt.Bool(t, cat.HasSubcategory("process-failure")).True()
	gt.Bool(t, cat.HasSubcategory("fraud")).False()
	gt.Value(t, cfg.FindCategory("process-failure")).Nil()
	gt.Value(t, cfg.FindDivision("finance").Code.String()).Equal("FIN")
	gt.Value(t, cfg.FindDivision("legal")).Nil()
	gt.Value(t, cfg.CodeRetryLimit).Equal(config.DefaultCodeRetryLimit)
}
