package http

import (
	"context"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/auth"
)

// WriteOrgsClaim is the private JWT claim listing the organizations the
// bearer may write to
const WriteOrgsClaim = "write_orgs"

// TokenVerifier turns a bearer token into the caller's identity
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Token, error)
}

// JWTVerifier validates signed JWTs against a key set
type JWTVerifier struct {
	keySet   jwk.Set
	audience string
}

// NewJWTVerifier fetches the key set published at jwksURL
func NewJWTVerifier(ctx context.Context, jwksURL, audience string) (*JWTVerifier, error) {
	keySet, err := jwk.Fetch(ctx, jwksURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch JWKS", goerr.V("url", jwksURL))
	}
	return NewJWTVerifierWithKeySet(keySet, audience), nil
}

func NewJWTVerifierWithKeySet(keySet jwk.Set, audience string) *JWTVerifier {
	return &JWTVerifier{keySet: keySet, audience: audience}
}

func (v *JWTVerifier) Verify(ctx context.Context, raw string) (*auth.Token, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(10 * time.Second),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, goerr.Wrap(model.ErrAccessDenied, "invalid bearer token", goerr.V("reason", err.Error()))
	}
	if token.Subject() == "" {
		return nil, goerr.Wrap(model.ErrAccessDenied, "bearer token has no subject")
	}

	result := &auth.Token{Subject: token.Subject()}
	if v, ok := token.Get(WriteOrgsClaim); ok {
		list, _ := v.([]any)
		for _, item := range list {
			if org, ok := item.(string); ok {
				result.WriteOrgs = append(result.WriteOrgs, org)
			}
		}
	}
	return result, nil
}

// actorOf names the caller for audit fields. A verified token wins over
// the name given in the request body.
func actorOf(r *http.Request, fallback string) string {
	if token := auth.TokenFromContext(r.Context()); token != nil {
		return token.Subject
	}
	return fallback
}
