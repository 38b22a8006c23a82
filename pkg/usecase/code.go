package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CodeUseCase hands out sequential entity codes such as FIN-OPS-001
type CodeUseCase struct {
	*core
}

// NextCode increments the counter of the prefix built from parts and
// formats the result. Two calls never return the same code.
func (uc *CodeUseCase) NextCode(ctx context.Context, orgID string, parts ...types.CodePart) (string, error) {
	prefix, err := model.BuildPrefix(parts...)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "NextCode", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("prefix", prefix),
	))
	defer span.End()

	seq, err := uc.repo.CodeCounter().Next(ctx, orgID, prefix)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", goerr.Wrap(err, "failed to generate code",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PrefixKey, prefix))
	}
	return model.FormatCode(prefix, seq), nil
}

// CreateEntityCode reserves a code for an entity of the given kind. Risks
// need their division and category code parts; controls and indicators
// use the configured literal when no parts are given.
func (uc *CodeUseCase) CreateEntityCode(ctx context.Context, orgID string, kind types.EntityKind, parts []types.CodePart) (string, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return "", err
	}
	parts, err := uc.prefixParts(kind, parts)
	if err != nil {
		return "", err
	}
	return uc.NextCode(ctx, orgID, parts...)
}

func (uc *CodeUseCase) prefixParts(kind types.EntityKind, parts []types.CodePart) ([]types.CodePart, error) {
	switch kind {
	case types.EntityRisk:
		if len(parts) == 0 {
			return nil, goerr.Wrap(model.ErrValidation, "risk codes need division and category parts")
		}
		return parts, nil
	case types.EntityControl:
		if len(parts) == 0 {
			return []types.CodePart{uc.cfg.Codes.Control}, nil
		}
		return parts, nil
	case types.EntityIndicator:
		if len(parts) == 0 {
			return []types.CodePart{uc.cfg.Codes.Indicator}, nil
		}
		return parts, nil
	default:
		return nil, goerr.Wrap(model.ErrValidation, "unknown entity kind", goerr.V(KindKey, kind))
	}
}

// createWithCode generates a code and passes it to insert until insert
// succeeds. A code already taken by an imported or manually created
// record makes insert return model.ErrDuplicateCode; the next attempt
// draws a fresh code. Callers never supply their own number.
func (uc *CodeUseCase) createWithCode(ctx context.Context, orgID string, parts []types.CodePart, insert func(code string) error) (string, error) {
	limit := uc.cfg.CodeRetryLimit
	if limit <= 0 {
		limit = config.DefaultCodeRetryLimit
	}

	for attempt := 1; attempt <= limit; attempt++ {
		code, err := uc.NextCode(ctx, orgID, parts...)
		if err != nil {
			return "", err
		}

		err = insert(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, model.ErrDuplicateCode) {
			return "", err
		}
		logging.From(ctx).Warn("generated code is already taken, retrying",
			"org_id", orgID, "code", code, "attempt", attempt)
	}

	return "", goerr.Wrap(model.ErrGenerationExhausted, "no free code after retries",
		goerr.V(model.OrgIDKey, orgID), goerr.V(AttemptKey, limit))
}

// riskParts returns the division and category code parts of a risk
func riskParts(cfg *config.RegisterConfig, risk *model.Risk) ([]types.CodePart, error) {
	div := cfg.FindDivision(risk.DivisionID)
	if div == nil {
		return nil, goerr.Wrap(model.ErrValidation, "unknown division", goerr.V("division_id", risk.DivisionID))
	}
	cat := cfg.FindCategory(risk.CategoryID)
	if cat == nil {
		return nil, goerr.Wrap(model.ErrValidation, "unknown risk category", goerr.V("category_id", risk.CategoryID))
	}
	return []types.CodePart{div.Code, cat.Code}, nil
}
