package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound    = goerr.New("configuration file not found")
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrDuplicateID       = goerr.New("duplicate ID")
	ErrDuplicateCode     = goerr.New("duplicate code")
	ErrMissingName       = goerr.New("name is required")
	ErrInvalidScale      = goerr.New("scale maximum must be 5 or 6")
	ErrMissingRepository = goerr.New("repository backend is not fully configured")
)

// Context keys for error values
const (
	ConfigPathKey    = "config_path"
	CategoryIDKey    = "category_id"
	SubcategoryIDKey = "subcategory_id"
	DivisionIDKey    = "division_id"
	CodeKey          = "code"
	BackendKey       = "backend"
)
