package auth

import (
	"context"
	"slices"
)

// Token is the verified identity of a caller and the organizations it may
// write to
type Token struct {
	Subject   string   `json:"subject"`
	WriteOrgs []string `json:"write_orgs,omitempty"`
}

// MayWrite reports whether the token grants write access to orgID. The
// wildcard "*" grants access to every organization.
func (t *Token) MayWrite(orgID string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.WriteOrgs, orgID) || slices.Contains(t.WriteOrgs, "*")
}

type ctxTokenKey struct{}

// ContextWithToken stores the token in ctx
func ContextWithToken(ctx context.Context, token *Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// TokenFromContext returns the token stored in ctx, or nil
func TokenFromContext(ctx context.Context) *Token {
	token, _ := ctx.Value(ctxTokenKey{}).(*Token)
	return token
}
