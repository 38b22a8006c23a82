package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func TestWorstStatus(t *testing.T) {
	tests := []struct {
		name        string
		in          []types.ToleranceStatus
		want        types.ToleranceStatus
		wantUnknown int
	}{
		{"empty", nil, types.ToleranceUnknown, 0},
		{"all unknown", []types.ToleranceStatus{types.ToleranceUnknown, types.ToleranceUnknown}, types.ToleranceUnknown, 2},
		{"green only", []types.ToleranceStatus{types.ToleranceGreen}, types.ToleranceGreen, 0},
		{"amber wins over green", []types.ToleranceStatus{types.ToleranceGreen, types.ToleranceAmber}, types.ToleranceAmber, 0},
		{"red wins", []types.ToleranceStatus{types.ToleranceRed, types.ToleranceAmber, types.ToleranceGreen}, types.ToleranceRed, 0},
		{"unknown is excluded", []types.ToleranceStatus{types.ToleranceGreen, types.ToleranceUnknown}, types.ToleranceGreen, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unknown := model.WorstStatus(tt.in...)
			gt.Value(t, got).Equal(tt.want)
			gt.Value(t, unknown).Equal(tt.wantUnknown)
		})
	}
}

func TestRollup(t *testing.T) {
	ops := &model.AppetiteCategory{ID: "ac-ops", CategoryID: "operational", Level: types.AppetiteLow}
	fin := &model.AppetiteCategory{ID: "ac-fin", CategoryID: "financial", Level: types.AppetiteModerate}
	legal := &model.AppetiteCategory{ID: "ac-legal", CategoryID: "legal", Level: types.AppetiteZero}

	opsStatus := model.RollupCategory(ops, []model.MetricStatus{
		{ToleranceID: "t1", Status: types.ToleranceGreen},
		{ToleranceID: "t2", Status: types.ToleranceAmber},
		{ToleranceID: "t3", Status: types.ToleranceUnknown},
	})
	gt.Value(t, opsStatus.Status).Equal(types.ToleranceAmber)
	gt.Value(t, opsStatus.UnknownMetrics).Equal(1)

	finStatus := model.RollupCategory(fin, []model.MetricStatus{
		{ToleranceID: "t4", Status: types.ToleranceGreen},
	})
	legalStatus := model.RollupCategory(legal, nil)
	gt.Value(t, legalStatus.Status).Equal(types.ToleranceUnknown)
	gt.Array(t, legalStatus.Metrics).Length(0)

	ent := model.RollupEnterprise("acme", []model.CategoryStatus{opsStatus, finStatus, legalStatus})
	gt.Value(t, ent.Status).Equal(types.ToleranceAmber)
	gt.Value(t, ent.UnknownCategories).Equal(1)
	gt.Array(t, ent.Categories).Length(3)
}
