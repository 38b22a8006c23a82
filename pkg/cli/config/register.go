package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	domainConfig "github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Register holds the path of the register configuration file
type Register struct {
	path string
}

func (x *Register) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Register configuration file (TOML). Built-in defaults with an empty taxonomy when omitted",
			Sources:     cli.EnvVars("RISKREGISTER_CONFIG"),
			Destination: &x.path,
		},
	}
}

func (x Register) LogValue() slog.Value {
	return slog.GroupValue(slog.String("path", x.path))
}

// Path returns the configured file path
func (x *Register) Path() string {
	return x.path
}

// Configure loads the register configuration
func (x *Register) Configure() (*domainConfig.RegisterConfig, error) {
	if x.path == "" {
		return domainConfig.Default(), nil
	}
	cfg, err := LoadAppConfiguration(x.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load register configuration")
	}
	return cfg.ToRegisterConfig(), nil
}
