package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/token"
)

type credentialDTO struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func (d credentialDTO) toCredential() token.Credential {
	return token.Credential{
		AccessToken:      d.AccessToken,
		RefreshToken:     d.RefreshToken,
		AccessExpiresAt:  d.AccessExpiresAt,
		RefreshExpiresAt: d.RefreshExpiresAt,
	}
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (token.Credential, error) {
	var dto credentialDTO
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &dto, false)
	if err != nil {
		return token.Credential{}, err
	}
	return dto.toCredential(), nil
}

// Register creates an account and returns its first token pair.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (token.Credential, error) {
	var dto credentialDTO
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}, &dto, false)
	if err != nil {
		return token.Credential{}, err
	}
	return dto.toCredential(), nil
}

// Refresh exchanges the current token pair for a fresh one. Unauthenticated:
// the pair itself is the proof.
func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (token.Credential, error) {
	var dto credentialDTO
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}, &dto, false)
	if err != nil {
		return token.Credential{}, err
	}
	return dto.toCredential(), nil
}
