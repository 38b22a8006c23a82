package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/usecase"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// registerEnv bundles the flags of every command that reads or writes the
// register
type registerEnv struct {
	register config.Register
	repo     config.Repository
}

func (x *registerEnv) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.register.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	return flags
}

// open loads the register configuration and connects the repository. The
// returned function closes the repository.
func (x *registerEnv) open(ctx context.Context, opts ...usecase.Option) (*usecase.UseCases, func(), error) {
	cfg, err := x.register.Configure()
	if err != nil {
		return nil, nil, err
	}

	x.repo.SetCodeRetryLimit(cfg.CodeRetryLimit)
	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	logging.Default().Info("Register configuration loaded",
		"config", x.register,
		"repository", x.repo,
		"categories", len(cfg.Categories),
		"divisions", len(cfg.Divisions),
	)

	uc := usecase.New(repo, append([]usecase.Option{usecase.WithRegisterConfig(cfg)}, opts...)...)
	return uc, closeRepository(repo), nil
}

func closeRepository(repo interfaces.Repository) func() {
	return func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}
}
