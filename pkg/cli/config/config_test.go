package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const validConfig = `
code_retry_limit = 3
max_exception_days = 180

[scale]
likelihood_max = 5
impact_max = 6

[codes]
control = "ctl"
indicator = "KRI"

[[category]]
id = "operational"
code = "OPS"
name = "Operational"
description = "Process and system failures"

  [[category.subcategory]]
  id = "it-outage"
  name = "IT Outage"

  [[category.subcategory]]
  id = "fraud"
  name = "Fraud"

[[category]]
id = "compliance"
code = "CMP"
name = "Compliance"

[[division]]
id = "finance"
code = "FIN"
name = "Finance"

[[division]]
id = "engineering"
code = "ENG"
name = "Engineering"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		cfg, err := config.LoadAppConfiguration(writeConfig(t, validConfig))
		gt.NoError(t, err).Required()

		gt.A(t, cfg.Categories).Length(2)
		gt.A(t, cfg.Categories[0].Subcategories).Length(2)
		gt.A(t, cfg.Divisions).Length(2)
		gt.Value(t, cfg.Scale.ImpactMax).Equal(6)
		gt.Value(t, cfg.CodeRetryLimit).Equal(3)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "none.toml"))
		gt.True(t, errors.Is(err, config.ErrConfigNotFound))
	})

	t.Run("malformed TOML", func(t *testing.T) {
		_, err := config.LoadAppConfiguration(writeConfig(t, "[[category]\nid ="))
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "duplicate category ID",
			content: `
[[category]]
id = "ops"
code = "OPS"
name = "Ops"

[[category]]
id = "ops"
code = "OP2"
name = "Ops again"
`,
			wantErr: config.ErrDuplicateID,
		},
		{
			name: "duplicate division code after normalization",
			content: `
[[division]]
id = "finance"
code = "fin"
name = "Finance"

[[division]]
id = "fintech"
code = "FIN"
name = "Fintech"
`,
			wantErr: config.ErrDuplicateCode,
		},
		{
			name: "category code with separator",
			content: `
[[category]]
id = "ops"
code = "O-P"
name = "Ops"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "upper-case category ID",
			content: `
[[category]]
id = "Ops"
code = "OPS"
name = "Ops"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "missing division name",
			content: `
[[division]]
id = "finance"
code = "FIN"
`,
			wantErr: config.ErrMissingName,
		},
		{
			name: "scale of seven",
			content: `
[scale]
likelihood_max = 7
`,
			wantErr: config.ErrInvalidScale,
		},
		{
			name: "control code collides with default indicator code",
			content: `
[codes]
control = "kri"
`,
			wantErr: config.ErrDuplicateCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadAppConfiguration(writeConfig(t, tt.content))
			gt.Value(t, err).NotNil()
			gt.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestAppConfig_ToRegisterConfig(t *testing.T) {
	t.Run("explicit values", func(t *testing.T) {
		cfg, err := config.LoadAppConfiguration(writeConfig(t, validConfig))
		gt.NoError(t, err).Required()

		reg := cfg.ToRegisterConfig()
		gt.Value(t, reg.Codes.Control).Equal(types.CodePart("CTL"))
		gt.Value(t, reg.Codes.Indicator).Equal(types.CodePart("KRI"))
		gt.Value(t, reg.Scale.LikelihoodMax).Equal(5)
		gt.Value(t, reg.Scale.ImpactMax).Equal(6)
		gt.Value(t, reg.CodeRetryLimit).Equal(3)
		gt.Value(t, reg.MaxExceptionDays).Equal(180)

		cat := reg.FindCategory("operational")
		gt.Value(t, cat).NotNil().Required()
		gt.Value(t, cat.Code).Equal(types.CodePart("OPS"))
		gt.True(t, cat.HasSubcategory("fraud"))
		gt.False(t, cat.HasSubcategory("compliance"))

		div := reg.FindDivision("engineering")
		gt.Value(t, div).NotNil().Required()
		gt.Value(t, div.Code).Equal(types.CodePart("ENG"))
	})

	t.Run("defaults", func(t *testing.T) {
		reg := (&config.AppConfig{}).ToRegisterConfig()
		gt.Value(t, reg.Codes.Control).Equal(types.CodePart("CTL"))
		gt.Value(t, reg.Scale.ImpactMax).Equal(5)
		gt.Value(t, reg.CodeRetryLimit).Equal(5)
		gt.Value(t, reg.MaxExceptionDays).Equal(365)
		gt.A(t, reg.Categories).Length(0)
	})
}
