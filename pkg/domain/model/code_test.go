package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func TestBuildPrefix(t *testing.T) {
	tests := []struct {
		name    string
		parts   []types.CodePart
		want    string
		wantErr bool
	}{
		{"division and category", []types.CodePart{"fin", "OPS"}, "FIN-OPS", false},
		{"single literal", []types.CodePart{"CTL"}, "CTL", false},
		{"no parts", nil, "", true},
		{"bad part", []types.CodePart{"FIN", "O-S"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.BuildPrefix(tt.parts...)
			if tt.wantErr {
				gt.Error(t, err).Is(model.ErrValidation)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestFormatCode(t *testing.T) {
	gt.Value(t, model.FormatCode("FIN-OPS", 1)).Equal("FIN-OPS-001")
	gt.Value(t, model.FormatCode("CTL", 42)).Equal("CTL-042")
	gt.Value(t, model.FormatCode("KRI", 1000)).Equal("KRI-1000")
}
