package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func TestPeriod_Next(t *testing.T) {
	tests := []struct {
		name string
		in   types.Period
		want types.Period
	}{
		{"Q1 to Q2", types.Period{Year: 2025, Quarter: 1}, types.Period{Year: 2025, Quarter: 2}},
		{"Q3 to Q4", types.Period{Year: 2025, Quarter: 3}, types.Period{Year: 2025, Quarter: 4}},
		{"Q4 wraps year", types.Period{Year: 2025, Quarter: 4}, types.Period{Year: 2026, Quarter: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.in.Next()).Equal(tt.want)
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input   string
		want    types.Period
		wantErr bool
	}{
		{"2025-Q1", types.Period{Year: 2025, Quarter: 1}, false},
		{"2024-Q4", types.Period{Year: 2024, Quarter: 4}, false},
		{"2025-Q5", types.Period{}, true},
		{"2025Q1", types.Period{}, true},
		{"", types.Period{}, true},
		{"0999-Q1", types.Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := types.ParsePeriod(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
			gt.Value(t, got.String()).Equal(tt.input)
		})
	}
}

func TestPeriod_Before(t *testing.T) {
	a := types.Period{Year: 2024, Quarter: 4}
	b := types.Period{Year: 2025, Quarter: 1}
	gt.Bool(t, a.Before(b)).True()
	gt.Bool(t, b.Before(a)).False()
	gt.Bool(t, a.Before(a)).False()
}
