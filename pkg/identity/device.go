package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type oidcDiscovery struct {
	TokenEndpoint               string `json:"token_endpoint"`
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type deviceTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

var (
	errAuthorizationPending = errors.New("authorization pending")
	errSlowDown             = errors.New("slow down")
)

// deviceCodeLogin runs the RFC 8628 device authorization grant: request a
// user code, point the user at the verification URL, poll the token endpoint
// until they approve or the code expires.
func (p *Provider) deviceCodeLogin(ctx context.Context, scopes []string) (*loginResult, error) {
	client, err := p.newHTTPClient()
	if err != nil {
		return nil, err
	}
	endpoints, err := discoverEndpoints(ctx, client, p.cfg.Authority)
	if err != nil {
		return nil, err
	}
	if endpoints.DeviceAuthorizationEndpoint == "" {
		return nil, errors.New("device authorization endpoint not advertised")
	}
	if endpoints.TokenEndpoint == "" {
		return nil, errors.New("token endpoint not advertised")
	}

	deviceResp, err := p.requestDeviceCode(ctx, client, endpoints.DeviceAuthorizationEndpoint, scopes)
	if err != nil {
		return nil, err
	}

	verificationURL := deviceResp.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = deviceResp.VerificationURI
	}

	p.log.Info("waiting for device approval",
		zap.String("verificationURI", deviceResp.VerificationURI),
		zap.String("userCode", deviceResp.UserCode))
	_, _ = fmt.Fprintf(os.Stderr, "Visit %s and enter code: %s\n", deviceResp.VerificationURI, deviceResp.UserCode)
	if verificationURL != "" {
		_ = openBrowser(verificationURL)
	}

	interval := time.Duration(deviceResp.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(deviceResp.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return nil, errors.New("device code expired")
		}
		tokenResp, err := p.pollDeviceToken(ctx, client, endpoints.TokenEndpoint, deviceResp.DeviceCode)
		if err != nil {
			if errors.Is(err, errAuthorizationPending) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(interval):
				}
				continue
			}
			if errors.Is(err, errSlowDown) {
				interval += 5 * time.Second
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(interval):
				}
				continue
			}
			return nil, err
		}
		expiry := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
		return &loginResult{Token: &oauth2.Token{
			AccessToken:  tokenResp.AccessToken,
			RefreshToken: tokenResp.RefreshToken,
			TokenType:    tokenResp.TokenType,
			Expiry:       expiry,
		}, IDToken: tokenResp.IDToken}, nil
	}
}

func discoverEndpoints(ctx context.Context, client *http.Client, authority string) (*oidcDiscovery, error) {
	discoveryURL := strings.TrimRight(authority, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("discovery failed: %s", string(body))
	}
	var discovery oidcDiscovery
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		return nil, err
	}
	return &discovery, nil
}

func (p *Provider) requestDeviceCode(ctx context.Context, client *http.Client, endpoint string, scopes []string) (*deviceCodeResponse, error) {
	values := url.Values{}
	values.Set("client_id", p.cfg.ClientID)
	values.Set("scope", strings.Join(effectiveScopes(scopes), " "))
	resp, err := postFormWithContext(ctx, client, endpoint, values)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("device authorization failed: %s", string(body))
	}
	var payload deviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *Provider) pollDeviceToken(ctx context.Context, client *http.Client, endpoint, deviceCode string) (*deviceTokenResponse, error) {
	values := url.Values{}
	values.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	values.Set("device_code", deviceCode)
	values.Set("client_id", p.cfg.ClientID)
	resp, err := postFormWithContext(ctx, client, endpoint, values)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var payload deviceTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		switch payload.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		default:
			return nil, fmt.Errorf("device token error: %s", payload.Error)
		}
	}
	return &payload, nil
}

func postFormWithContext(ctx context.Context, client *http.Client, endpoint string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}
