package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// AppConfig represents the register configuration file
type AppConfig struct {
	Categories       []Category `toml:"category"`
	Divisions        []Division `toml:"division"`
	Scale            Scale      `toml:"scale"`
	Codes            Codes      `toml:"codes"`
	CodeRetryLimit   int        `toml:"code_retry_limit"`
	MaxExceptionDays int        `toml:"max_exception_days"`
}

// Category represents a top-level risk category
type Category struct {
	ID            string        `toml:"id"`
	Code          string        `toml:"code"`
	Name          string        `toml:"name"`
	Description   string        `toml:"description"`
	Subcategories []Subcategory `toml:"subcategory"`
}

// Subcategory represents the second taxonomy level
type Subcategory struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Division represents an organizational unit owning risks
type Division struct {
	ID   string `toml:"id"`
	Code string `toml:"code"`
	Name string `toml:"name"`
}

// Scale bounds inherent scores. Zero means the default of 5.
type Scale struct {
	LikelihoodMax int `toml:"likelihood_max"`
	ImpactMax     int `toml:"impact_max"`
}

// Codes overrides the prefix literals of controls and indicators
type Codes struct {
	Control   string `toml:"control"`
	Indicator string `toml:"indicator"`
}

// Validate checks if the Category is valid
func (c *Category) Validate() error {
	if err := types.CategoryID(c.ID).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid category ID", goerr.V(CategoryIDKey, c.ID), goerr.V("cause", err.Error()))
	}
	if err := types.CodePart(c.Code).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid category code", goerr.V(CategoryIDKey, c.ID), goerr.V(CodeKey, c.Code))
	}
	if c.Name == "" {
		return goerr.Wrap(ErrMissingName, "category name is required", goerr.V(CategoryIDKey, c.ID))
	}

	seen := make(map[string]bool)
	for _, sub := range c.Subcategories {
		if err := types.CategoryID(sub.ID).Validate(); err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid subcategory ID",
				goerr.V(CategoryIDKey, c.ID), goerr.V(SubcategoryIDKey, sub.ID))
		}
		if sub.Name == "" {
			return goerr.Wrap(ErrMissingName, "subcategory name is required",
				goerr.V(CategoryIDKey, c.ID), goerr.V(SubcategoryIDKey, sub.ID))
		}
		if seen[sub.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate subcategory ID",
				goerr.V(CategoryIDKey, c.ID), goerr.V(SubcategoryIDKey, sub.ID))
		}
		seen[sub.ID] = true
	}
	return nil
}

// Validate checks if the Division is valid
func (d *Division) Validate() error {
	if err := types.DivisionID(d.ID).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid division ID", goerr.V(DivisionIDKey, d.ID), goerr.V("cause", err.Error()))
	}
	if err := types.CodePart(d.Code).Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid division code", goerr.V(DivisionIDKey, d.ID), goerr.V(CodeKey, d.Code))
	}
	if d.Name == "" {
		return goerr.Wrap(ErrMissingName, "division name is required", goerr.V(DivisionIDKey, d.ID))
	}
	return nil
}

func validScaleMax(n int) bool {
	return n == 0 || n == 5 || n == 6
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	categoryIDs := make(map[string]bool)
	categoryCodes := make(map[string]bool)
	for _, cat := range a.Categories {
		if err := cat.Validate(); err != nil {
			return err
		}
		if categoryIDs[cat.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate category ID", goerr.V(CategoryIDKey, cat.ID))
		}
		categoryIDs[cat.ID] = true

		code := types.CodePart(cat.Code).Normalize().String()
		if categoryCodes[code] {
			return goerr.Wrap(ErrDuplicateCode, "duplicate category code", goerr.V(CodeKey, code))
		}
		categoryCodes[code] = true
	}

	divisionIDs := make(map[string]bool)
	divisionCodes := make(map[string]bool)
	for _, div := range a.Divisions {
		if err := div.Validate(); err != nil {
			return err
		}
		if divisionIDs[div.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate division ID", goerr.V(DivisionIDKey, div.ID))
		}
		divisionIDs[div.ID] = true

		code := types.CodePart(div.Code).Normalize().String()
		if divisionCodes[code] {
			return goerr.Wrap(ErrDuplicateCode, "duplicate division code", goerr.V(CodeKey, code))
		}
		divisionCodes[code] = true
	}

	if !validScaleMax(a.Scale.LikelihoodMax) || !validScaleMax(a.Scale.ImpactMax) {
		return goerr.Wrap(ErrInvalidScale, "invalid scale",
			goerr.V("likelihood_max", a.Scale.LikelihoodMax), goerr.V("impact_max", a.Scale.ImpactMax))
	}

	for _, code := range []string{a.Codes.Control, a.Codes.Indicator} {
		if code == "" {
			continue
		}
		if err := types.CodePart(code).Validate(); err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid entity code", goerr.V(CodeKey, code))
		}
	}
	if codes := a.ToRegisterConfig().Codes; codes.Control == codes.Indicator {
		return goerr.Wrap(ErrDuplicateCode, "control and indicator codes must differ", goerr.V(CodeKey, codes.Control))
	}

	if a.CodeRetryLimit < 0 {
		return goerr.Wrap(ErrInvalidConfig, "code_retry_limit must not be negative", goerr.V("code_retry_limit", a.CodeRetryLimit))
	}
	if a.MaxExceptionDays < 0 {
		return goerr.Wrap(ErrInvalidConfig, "max_exception_days must not be negative", goerr.V("max_exception_days", a.MaxExceptionDays))
	}

	return nil
}

// LoadAppConfiguration loads the register configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// ToRegisterConfig converts AppConfig to the domain configuration, filling
// unset values with the built-in defaults
func (a *AppConfig) ToRegisterConfig() *domainConfig.RegisterConfig {
	cfg := domainConfig.Default()

	cfg.Categories = make([]domainConfig.Category, len(a.Categories))
	for i, cat := range a.Categories {
		subs := make([]domainConfig.Subcategory, len(cat.Subcategories))
		for j, sub := range cat.Subcategories {
			subs[j] = domainConfig.Subcategory{
				ID:   types.CategoryID(sub.ID),
				Name: sub.Name,
			}
		}
		cfg.Categories[i] = domainConfig.Category{
			ID:            types.CategoryID(cat.ID),
			Code:          types.CodePart(cat.Code).Normalize(),
			Name:          cat.Name,
			Description:   cat.Description,
			Subcategories: subs,
		}
	}

	cfg.Divisions = make([]domainConfig.Division, len(a.Divisions))
	for i, div := range a.Divisions {
		cfg.Divisions[i] = domainConfig.Division{
			ID:   types.DivisionID(div.ID),
			Code: types.CodePart(div.Code).Normalize(),
			Name: div.Name,
		}
	}

	if a.Scale.LikelihoodMax != 0 {
		cfg.Scale.LikelihoodMax = a.Scale.LikelihoodMax
	}
	if a.Scale.ImpactMax != 0 {
		cfg.Scale.ImpactMax = a.Scale.ImpactMax
	}
	if a.Codes.Control != "" {
		cfg.Codes.Control = types.CodePart(a.Codes.Control).Normalize()
	}
	if a.Codes.Indicator != "" {
		cfg.Codes.Indicator = types.CodePart(a.Codes.Indicator).Normalize()
	}
	if a.CodeRetryLimit != 0 {
		cfg.CodeRetryLimit = a.CodeRetryLimit
	}
	if a.MaxExceptionDays != 0 {
		cfg.MaxExceptionDays = a.MaxExceptionDays
	}

	return cfg
}
