package config

import "github.com/secmon-lab/riskregister/pkg/domain/types"

const (
	DefaultControlCode      = "CTL"
	DefaultIndicatorCode    = "KRI"
	DefaultCodeRetryLimit   = 5
	DefaultMaxExceptionDays = 365
	DefaultScaleMax         = 5
)

// Subcategory is the second level of the risk taxonomy
type Subcategory struct {
	ID   types.CategoryID
	Name string
}

// Category is a top-level taxonomy category. Code is the prefix part used
// in risk codes.
type Category struct {
	ID            types.CategoryID
	Code          types.CodePart
	Name          string
	Description   string
	Subcategories []Subcategory
}

// HasSubcategory reports whether id is one of the category's subcategories
func (c *Category) HasSubcategory(id types.CategoryID) bool {
	for _, sub := range c.Subcategories {
		if sub.ID == id {
			return true
		}
	}
	return false
}

// Division is an organizational unit owning risks
type Division struct {
	ID   types.DivisionID
	Code types.CodePart
	Name string
}

// Scale bounds inherent likelihood and impact scores
type Scale struct {
	LikelihoodMax int
	ImpactMax     int
}

// Codes are the fixed prefix literals for non-risk entities
type Codes struct {
	Control   types.CodePart
	Indicator types.CodePart
}

// RegisterConfig is the per-deployment risk register configuration
type RegisterConfig struct {
	Categories       []Category
	Divisions        []Division
	Scale            Scale
	Codes            Codes
	CodeRetryLimit   int
	MaxExceptionDays int
}

// Default returns a configuration with the built-in defaults and an empty
// taxonomy
func Default() *RegisterConfig {
	return &RegisterConfig{
		Scale:            Scale{LikelihoodMax: DefaultScaleMax, ImpactMax: DefaultScaleMax},
		Codes:            Codes{Control: DefaultControlCode, Indicator: DefaultIndicatorCode},
		CodeRetryLimit:   DefaultCodeRetryLimit,
		MaxExceptionDays: DefaultMaxExceptionDays,
	}
}

// FindCategory returns the top-level category with the given ID
func (c *RegisterConfig) FindCategory(id types.CategoryID) *Category {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			return &c.Categories[i]
		}
	}
	return nil
}

// FindDivision returns the division with the given ID
func (c *RegisterConfig) FindDivision(id types.DivisionID) *Division {
	for i := range c.Divisions {
		if c.Divisions[i].ID == id {
			return &c.Divisions[i]
		}
	}
	return nil
}
