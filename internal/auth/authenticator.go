package auth

import (
	"fmt"

	"github.com/home-sentry/core/internal/infrastructure/logging"
)

// AccessToken is the login response payload. IssuedAt is the token's
// iat claim in unix seconds; ExpiresIn is the lifetime in seconds.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
	IssuedAt    int64  `json:"issuedAt"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Authenticator verifies login credentials against the configured admin
// account and issues access tokens.
type Authenticator struct {
	adminUsername string
	adminPassword string
	tokens        *TokenService
	logger        *logging.Logger
}

// NewAuthenticator creates an authenticator for the single admin
// credential pair.
func NewAuthenticator(adminUsername, adminPassword string, tokens *TokenService, logger *logging.Logger) *Authenticator {
	return &Authenticator{
		adminUsername: adminUsername,
		adminPassword: adminPassword,
		tokens:        tokens,
		logger:        logger.With("component", "auth"),
	}
}

// Login checks the credential pair and returns a signed access token.
// Any mismatch returns ErrInvalidCredentials without revealing which
// field was wrong.
func (a *Authenticator) Login(username, password string) (*AccessToken, error) {
	if username != a.adminUsername || password != a.adminPassword {
		a.logger.Warn("login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	signed, err := a.tokens.Sign(username)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	// Round-trip through Verify to read the timestamps actually encoded
	// in the token rather than recomputing them.
	claims, err := a.tokens.Verify(signed)
	if err != nil {
		return nil, fmt.Errorf("verifying issued token: %w", err)
	}

	issuedAt := claims.IssuedAt.Unix()
	expiresAt := claims.ExpiresAt.Unix()

	a.logger.Info("login succeeded", "username", username)

	return &AccessToken{
		AccessToken: signed,
		IssuedAt:    issuedAt,
		ExpiresIn:   expiresAt - issuedAt,
	}, nil
}

// VerifyToken validates a bearer token and returns the username it was
// issued to.
func (a *Authenticator) VerifyToken(tokenString string) (string, error) {
	claims, err := a.tokens.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}
