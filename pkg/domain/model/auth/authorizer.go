package auth

import "context"

// AllowAll grants write access to every organization. It is used when the
// server runs without authentication.
type AllowAll struct{}

func (AllowAll) MayWrite(ctx context.Context, orgID string) bool {
	return true
}

// TokenAuthorizer grants write access according to the token in the
// request context
type TokenAuthorizer struct{}

func (TokenAuthorizer) MayWrite(ctx context.Context, orgID string) bool {
	return TokenFromContext(ctx).MayWrite(orgID)
}
