// Package auth verifies request credentials against the external identity
// provider. Identities are never cached: every call re-verifies.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/apperror"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// Failure reasons, matching the provider error taxonomy.
var (
	ErrMissingCredential = apperror.Auth(http.StatusUnauthorized, "missing credential")
	ErrConfig            = apperror.Auth(http.StatusInternalServerError, "identity provider configuration missing")
	ErrInvalidCredential = apperror.Auth(http.StatusUnauthorized, "invalid or expired session")
)

// TokenHeader is the header the web client sends the provider session in.
const TokenHeader = "X-Supabase-Token"

// Verifier resolves a credential into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (model.Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, credential string) (model.Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, credential string) (model.Identity, error) {
	return f(ctx, credential)
}

// CredentialFromRequest returns the provider token from X-Supabase-Token, or
// from an "Authorization: Bearer" header when the former is absent.
func CredentialFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tok
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	return id, ok
}

