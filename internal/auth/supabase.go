package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

const verifyTimeout = 10 * time.Second

// SupabaseVerifier introspects a session token by calling the provider's
// /auth/v1/user endpoint.
type SupabaseVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewSupabaseVerifier constructs a verifier for the project at baseURL.
// A nil client gets a default with a fixed timeout.
func NewSupabaseVerifier(baseURL, apiKey string, client *http.Client, logger *zap.Logger) *SupabaseVerifier {
	if client == nil {
		client = &http.Client{Timeout: verifyTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Verify implements Verifier.
func (v *SupabaseVerifier) Verify(ctx context.Context, credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, ErrMissingCredential
	}
	if v.baseURL == "" || v.apiKey == "" {
		return model.Identity{}, ErrConfig
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("identity provider unreachable", zap.Error(err))
		return model.Identity{}, ErrInvalidCredential
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.Identity{}, ErrInvalidCredential
	}

	var u supabaseUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&u); err != nil {
		v.logger.Warn("identity provider returned malformed user", zap.Error(err))
		return model.Identity{}, ErrInvalidCredential
	}
	if u.ID == "" {
		return model.Identity{}, ErrInvalidCredential
	}
	return model.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}
