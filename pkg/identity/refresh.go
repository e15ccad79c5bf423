package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

type refreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// errInvalidGrant marks a refresh token the provider no longer accepts; the
// session is over rather than the mechanism broken.
var errInvalidGrant = errors.New("invalid_grant")

// refreshToken runs the refresh_token grant directly against the token
// endpoint. oauth2.TokenSource cannot serve here: it never transmits a scope
// parameter, so a grant could not be widened beyond the original scope set.
func (p *Provider) refreshToken(ctx context.Context, refreshToken string, scopes []string) (*refreshTokenResponse, error) {
	client, err := p.newHTTPClient()
	if err != nil {
		return nil, err
	}
	endpoints, err := discoverEndpoints(ctx, client, p.cfg.Authority)
	if err != nil {
		return nil, err
	}
	if endpoints.TokenEndpoint == "" {
		return nil, errors.New("token endpoint not advertised")
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}
	values.Set("scope", strings.Join(effectiveScopes(scopes), " "))

	resp, err := postFormWithContext(ctx, client, endpoints.TokenEndpoint, values)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload refreshTokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("token refresh failed: %s", strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if payload.Error == "invalid_grant" {
		return nil, errInvalidGrant
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("token refresh error: %s", payload.Error)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token response missing access token")
	}
	return &payload, nil
}
