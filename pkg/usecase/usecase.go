package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/auth"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/secmon-lab/riskregister/pkg/usecase")

// core holds the dependencies shared by every use case
type core struct {
	repo       interfaces.Repository
	cfg        *config.RegisterConfig
	authorizer interfaces.Authorizer
	notifier   interfaces.Notifier
	suggester  interfaces.SuggestionProvider
	archiver   interfaces.SnapshotArchiver
	clock      func() time.Time
	newID      func() string
}

func (c *core) now() time.Time {
	return c.clock().UTC()
}

// authorize rejects callers that may not write to orgID
func (c *core) authorize(ctx context.Context, orgID string) error {
	if orgID == "" {
		return goerr.Wrap(model.ErrValidation, "organization is required")
	}
	if !c.authorizer.MayWrite(ctx, orgID) {
		return goerr.Wrap(model.ErrAccessDenied, "write access denied", goerr.V(model.OrgIDKey, orgID))
	}
	return nil
}

type UseCases struct {
	core *core

	Code      *CodeUseCase
	Risk      *RiskUseCase
	Control   *ControlUseCase
	Indicator *IndicatorUseCase
	Appetite  *AppetiteUseCase
	Tolerance *ToleranceUseCase
	Period    *PeriodUseCase
	Suggest   *SuggestUseCase
}

type Option func(*core)

// WithRegisterConfig sets the taxonomy, scale and code configuration
func WithRegisterConfig(cfg *config.RegisterConfig) Option {
	return func(c *core) {
		c.cfg = cfg
	}
}

func WithAuthorizer(a interfaces.Authorizer) Option {
	return func(c *core) {
		c.authorizer = a
	}
}

func WithNotifier(n interfaces.Notifier) Option {
	return func(c *core) {
		c.notifier = n
	}
}

func WithSuggestionProvider(p interfaces.SuggestionProvider) Option {
	return func(c *core) {
		c.suggester = p
	}
}

// WithArchiver exports every committed period after the commit succeeds
func WithArchiver(a interfaces.SnapshotArchiver) Option {
	return func(c *core) {
		c.archiver = a
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *core) {
		c.clock = clock
	}
}

// WithIDGenerator replaces the UUID generator used for non-coded records
func WithIDGenerator(newID func() string) Option {
	return func(c *core) {
		c.newID = newID
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	c := &core{
		repo:       repo,
		cfg:        config.Default(),
		authorizer: auth.AllowAll{},
		clock:      time.Now,
		newID:      uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	codes := &CodeUseCase{core: c}
	controls := &ControlUseCase{core: c, codes: codes}
	return &UseCases{
		core:      c,
		Code:      codes,
		Risk:      &RiskUseCase{core: c, codes: codes},
		Control:   controls,
		Indicator: &IndicatorUseCase{core: c, codes: codes},
		Appetite:  &AppetiteUseCase{core: c},
		Tolerance: &ToleranceUseCase{core: c},
		Period:    &PeriodUseCase{core: c},
		Suggest:   &SuggestUseCase{core: c, controls: controls},
	}
}

// RegisterConfig returns the configuration the use cases validate against
func (uc *UseCases) RegisterConfig() *config.RegisterConfig {
	return uc.core.cfg
}
