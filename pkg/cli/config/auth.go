package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/riskregister/pkg/controller/http"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model/auth"
	"github.com/urfave/cli/v3"
)

// Auth holds configuration of bearer token verification
type Auth struct {
	jwksURL  string
	audience string
}

func (x *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "auth-jwks-url",
			Usage:       "JWKS endpoint verifying API tokens. The API is unauthenticated when empty",
			Category:    "Auth",
			Destination: &x.jwksURL,
			Sources:     cli.EnvVars("RISKREGISTER_AUTH_JWKS_URL"),
		},
		&cli.StringFlag{
			Name:        "auth-audience",
			Usage:       "Required audience of API tokens",
			Category:    "Auth",
			Destination: &x.audience,
			Sources:     cli.EnvVars("RISKREGISTER_AUTH_AUDIENCE"),
		},
	}
}

func (x Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("jwks_url", x.jwksURL),
		slog.String("audience", x.audience),
	)
}

// Configure returns the token verifier and the authorizer to use. Without a
// JWKS URL every request is accepted and may write to any organization.
func (x *Auth) Configure(ctx context.Context) (httpctrl.TokenVerifier, interfaces.Authorizer, error) {
	if x.jwksURL == "" {
		return nil, auth.AllowAll{}, nil
	}

	verifier, err := httpctrl.NewJWTVerifier(ctx, x.jwksURL, x.audience)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure token verifier", goerr.V("jwks_url", x.jwksURL))
	}
	return verifier, auth.TokenAuthorizer{}, nil
}
