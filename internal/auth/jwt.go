package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// Audience carried by provider-issued session tokens.
const Audience = "authenticated"

// Claims is the subset of provider session claims the service reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 session tokens locally with the project's JWT
// secret instead of calling the provider.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier constructs a JWTVerifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(Audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, ErrMissingCredential
	}
	if len(v.secret) == 0 {
		return model.Identity{}, ErrConfig
	}

	var claims Claims
	tok, err := v.parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return model.Identity{}, ErrInvalidCredential
	}
	return model.Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
