package http_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/riskregister/pkg/controller/http"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/auth"
	"github.com/secmon-lab/riskregister/pkg/domain/model/config"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

const testOrgID = "test-org"

func newTestUseCases(opts ...usecase.Option) *usecase.UseCases {
	cfg := config.Default()
	cfg.Categories = []config.Category{
		{ID: "operational", Code: "OPS", Name: "Operational"},
	}
	cfg.Divisions = []config.Division{
		{ID: "finance", Code: "FIN", Name: "Finance"},
	}
	return usecase.New(memory.New(), append([]usecase.Option{usecase.WithRegisterConfig(cfg)}, opts...)...)
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		gt.NoError(t, json.NewEncoder(&buf).Encode(body)).Required()
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Values  map[string]any `json:"values"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body)).Required()
	return body
}

var riskBody = map[string]any{
	"title":               "Payment batch fails",
	"category_id":         "operational",
	"division_id":         "finance",
	"owner":               "alice",
	"inherent_likelihood": 4,
	"inherent_impact":     5,
}

func TestServer_Health(t *testing.T) {
	srv := httpctrl.New(newTestUseCases())
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
}

func TestServer_Risk(t *testing.T) {
	srv := httpctrl.New(newTestUseCases())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody)
	gt.Value(t, rec.Code).Equal(http.StatusCreated)
	var risk model.Risk
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &risk)).Required()
	gt.Value(t, risk.ID).Equal("FIN-OPS-001")

	t.Run("get", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/orgs/test-org/risks/FIN-OPS-001", nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})

	t.Run("unknown risk is not found", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/orgs/test-org/risks/FIN-OPS-999", nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
		gt.Value(t, decodeError(t, rec).Kind).Equal(string(model.KindNotFound))
	})

	t.Run("invalid score is a validation error", func(t *testing.T) {
		body := map[string]any{}
		for k, v := range riskBody {
			body[k] = v
		}
		body["inherent_impact"] = 6
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", body)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decodeError(t, rec).Kind).Equal(string(model.KindValidation))
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", map[string]any{"severity": 3})
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("residual follows linked controls", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/controls", map[string]any{
			"title":  "Four-eyes approval",
			"owner":  "bob",
			"type":   types.ControlTypePreventive,
			"target": types.TargetLikelihood,
			"score":  map[string]int{"design": 3, "implementation": 3, "monitoring": 2, "evaluation": 1},
		})
		gt.Value(t, rec.Code).Equal(http.StatusCreated)
		var control model.Control
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &control)).Required()

		rec = doRequest(t, srv, http.MethodPut, "/api/v1/orgs/test-org/risks/FIN-OPS-001/controls/"+control.ID, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		var residual model.Residual
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &residual)).Required()
		gt.Number(t, residual.Score).Equal(10)
	})
}

func TestServer_Tolerance(t *testing.T) {
	srv := httpctrl.New(newTestUseCases())

	t.Run("evaluate", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/tolerances/evaluate", map[string]any{
			"metric_type": types.MetricTypeMaximum,
			"thresholds":  map[string]any{"values": []float64{70, 90}},
			"value":       85,
		})
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		var body map[string]string
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body)).Required()
		gt.Value(t, body["status"]).Equal(string(types.ToleranceAmber))
	})

	t.Run("unordered thresholds are rejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/tolerances/evaluate", map[string]any{
			"metric_type": types.MetricTypeMaximum,
			"thresholds":  map[string]any{"values": []float64{90, 70}},
			"value":       85,
		})
		gt.Value(t, rec.Code).Equal(http.StatusUnprocessableEntity)
		gt.Value(t, decodeError(t, rec).Kind).Equal(string(model.KindInvalidThresholdConfiguration))
	})
}

func TestServer_CommitPeriod(t *testing.T) {
	srv := httpctrl.New(newTestUseCases())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/periods/active", map[string]any{
		"period": map[string]int{"year": 2026, "quarter": 1},
	})
	gt.Value(t, rec.Code).Equal(http.StatusCreated)
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody)
	gt.Value(t, rec.Code).Equal(http.StatusCreated)

	commit := map[string]string{"actor": "cro", "note": "quarter close"}
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/periods/2026-Q1/commit", commit)
	gt.Value(t, rec.Code).Equal(http.StatusCreated)
	var result model.CommitResult
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result)).Required()
	gt.Number(t, result.SnapshotCount).Equal(1)
	gt.Value(t, result.ActivePeriod.String()).Equal("2026-Q2")

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/periods/2026-Q1/commit", commit)
	gt.Value(t, rec.Code).Equal(http.StatusConflict)
	gt.Value(t, decodeError(t, rec).Kind).Equal(string(model.KindAlreadyCommitted))

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/orgs/test-org/periods/2026-Q1/snapshots", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	var snapshots []model.RiskSnapshot
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots)).Required()
	gt.Array(t, snapshots).Length(1).Required()
	gt.Number(t, snapshots[0].InherentScore).Equal(20)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/orgs/test-org/periods/2026-Q5", nil)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

type staticVerifier struct {
	token *auth.Token
}

func (v *staticVerifier) Verify(ctx context.Context, raw string) (*auth.Token, error) {
	if raw != "valid" {
		return nil, model.ErrAccessDenied
	}
	return v.token, nil
}

func TestServer_Authorization(t *testing.T) {
	uc := newTestUseCases(usecase.WithAuthorizer(auth.TokenAuthorizer{}))
	verifier := &staticVerifier{token: &auth.Token{Subject: "alice", WriteOrgs: []string{testOrgID}}}
	srv := httpctrl.New(uc, httpctrl.WithTokenVerifier(verifier))

	t.Run("missing bearer token", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("invalid bearer token", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody, "Authorization", "Bearer forged")
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("other organization is forbidden", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/other-org/risks", riskBody, "Authorization", "Bearer valid")
		gt.Value(t, rec.Code).Equal(http.StatusForbidden)
		gt.Value(t, decodeError(t, rec).Kind).Equal(string(model.KindAccessDenied))
	})

	t.Run("own organization is allowed", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody, "Authorization", "Bearer valid")
		gt.Value(t, rec.Code).Equal(http.StatusCreated)
	})

	t.Run("health needs no token", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/health", nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})
}

func TestServer_SuggestionUnavailable(t *testing.T) {
	srv := httpctrl.New(newTestUseCases())
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody)
	gt.Value(t, rec.Code).Equal(http.StatusCreated)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks/FIN-OPS-001/suggestions/controls", nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotImplemented)
}

func newSigningKey(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	gt.NoError(t, err).Required()

	priv, err := jwk.FromRaw(raw)
	gt.NoError(t, err).Required()
	gt.NoError(t, priv.Set(jwk.KeyIDKey, "test-key")).Required()
	gt.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256)).Required()

	pub, err := jwk.PublicKeyOf(priv)
	gt.NoError(t, err).Required()
	gt.NoError(t, pub.Set(jwk.KeyIDKey, "test-key")).Required()
	gt.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256)).Required()

	set := jwk.NewSet()
	gt.NoError(t, set.AddKey(pub)).Required()
	return priv, set
}

func signToken(t *testing.T, key jwk.Key, audience string, orgs []string, expires time.Time) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Subject("alice").
		Audience([]string{audience}).
		IssuedAt(time.Now()).
		Expiration(expires).
		Claim(httpctrl.WriteOrgsClaim, orgs).
		Build()
	gt.NoError(t, err).Required()

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	gt.NoError(t, err).Required()
	return string(signed)
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	key, set := newSigningKey(t)
	verifier := httpctrl.NewJWTVerifierWithKeySet(set, "riskregister")

	t.Run("valid token", func(t *testing.T) {
		raw := signToken(t, key, "riskregister", []string{testOrgID}, time.Now().Add(time.Hour))
		token, err := verifier.Verify(ctx, raw)
		gt.NoError(t, err).Required()
		gt.Value(t, token.Subject).Equal("alice")
		gt.Bool(t, token.MayWrite(testOrgID)).True()
		gt.Bool(t, token.MayWrite("other-org")).False()
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw := signToken(t, key, "someone-else", []string{testOrgID}, time.Now().Add(time.Hour))
		_, err := verifier.Verify(ctx, raw)
		gt.Error(t, err).Is(model.ErrAccessDenied)
	})

	t.Run("expired token", func(t *testing.T) {
		raw := signToken(t, key, "riskregister", []string{testOrgID}, time.Now().Add(-time.Hour))
		_, err := verifier.Verify(ctx, raw)
		gt.Error(t, err).Is(model.ErrAccessDenied)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, _ := newSigningKey(t)
		raw := signToken(t, other, "riskregister", []string{testOrgID}, time.Now().Add(time.Hour))
		_, err := verifier.Verify(ctx, raw)
		gt.Error(t, err).Is(model.ErrAccessDenied)
	})

	t.Run("through the server", func(t *testing.T) {
		uc := newTestUseCases(usecase.WithAuthorizer(auth.TokenAuthorizer{}))
		srv := httpctrl.New(uc, httpctrl.WithTokenVerifier(verifier))
		raw := signToken(t, key, "riskregister", []string{testOrgID}, time.Now().Add(time.Hour))
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/orgs/test-org/risks", riskBody, "Authorization", "Bearer "+raw)
		gt.Value(t, rec.Code).Equal(http.StatusCreated)
	})
}
