package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ProviderConfig describes the OIDC provider the desktop application
// authenticates against.
type ProviderConfig struct {
	Authority       string
	ClientID        string
	ClientSecret    string
	GrantType       string // authorization-code (default) or device-code
	CAFile          string
	InsecureSkipTLS bool
	ExtraAuthParams map[string]string
}

const (
	GrantAuthorizationCode = "authorization-code"
	GrantDeviceCode        = "device-code"
)

// Provider runs the interactive OIDC flows. It holds no session state; the
// credential layers the token cache on top.
type Provider struct {
	cfg ProviderConfig
	log *zap.Logger
}

func NewProvider(cfg ProviderConfig, log *zap.Logger) (*Provider, error) {
	if cfg.Authority == "" || cfg.ClientID == "" {
		return nil, errors.New("authority and client-id are required")
	}
	if cfg.GrantType == "" {
		cfg.GrantType = GrantAuthorizationCode
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{cfg: cfg, log: log}, nil
}

// loginResult is the raw outcome of an interactive grant.
type loginResult struct {
	Token   *oauth2.Token
	IDToken string
}

// Authenticate runs the configured interactive grant. It may open a browser
// and waits on the user without a timeout; the user controls pacing.
func (p *Provider) Authenticate(ctx context.Context, scopes []string) (*loginResult, error) {
	switch p.cfg.GrantType {
	case GrantAuthorizationCode:
		return p.authCodeLogin(ctx, scopes)
	case GrantDeviceCode:
		return p.deviceCodeLogin(ctx, scopes)
	default:
		return nil, fmt.Errorf("unsupported grant type: %s", p.cfg.GrantType)
	}
}

type oauthBundle struct {
	OAuthConfig oauth2.Config
	Client      *http.Client
}

func (p *Provider) buildOAuthConfig(ctx context.Context, redirectURL string, scopes []string) (*oauthBundle, error) {
	httpClient, err := p.newHTTPClient()
	if err != nil {
		return nil, err
	}
	ctx = oidc.ClientContext(ctx, httpClient)
	provider, err := oidc.NewProvider(ctx, p.cfg.Authority)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &oauthBundle{
		OAuthConfig: oauth2.Config{
			ClientID:     p.cfg.ClientID,
			ClientSecret: p.cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       effectiveScopes(scopes),
		},
		Client: httpClient,
	}, nil
}

// effectiveScopes merges the identity scopes every flow needs with the
// resource scopes of the request. offline_access is required for refresh
// tokens, which silent acquisition depends on.
func effectiveScopes(requested []string) []string {
	seen := map[string]bool{}
	scopes := []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	for _, s := range scopes {
		seen[s] = true
	}
	extra := make([]string, 0, len(requested))
	for _, s := range requested {
		if s != "" && !seen[s] {
			seen[s] = true
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(scopes, extra...)
}

func (p *Provider) authCodeLogin(ctx context.Context, scopes []string) (*loginResult, error) {
	codeVerifier, codeChallenge, err := newPKCEPair()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	bundle, err := p.buildOAuthConfig(ctx, redirectURL, scopes)
	if err != nil {
		return nil, err
	}
	oauthCfg := bundle.OAuthConfig

	state, err := randomToken(24)
	if err != nil {
		return nil, err
	}

	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	for k, v := range p.cfg.ExtraAuthParams {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}
	authURL := oauthCfg.AuthCodeURL(state, authOpts...)

	resultCh := make(chan *loginResult, 1)
	errCh := make(chan error, 1)
	exchangeCtx := oidc.ClientContext(ctx, bundle.Client)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			if r.URL.Query().Get("state") != state {
				errCh <- errors.New("invalid state in callback")
				http.Error(w, "invalid state", http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				errCh <- errors.New("missing code in callback")
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			token, err := oauthCfg.Exchange(exchangeCtx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
			if err != nil {
				errCh <- fmt.Errorf("token exchange failed: %w", err)
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				return
			}
			idToken, _ := token.Extra("id_token").(string)
			_, _ = fmt.Fprintln(w, "Authentication complete. You can return to kubedeck.")
			resultCh <- &loginResult{Token: token, IDToken: idToken}
		}),
	}

	go func() {
		_ = server.Serve(listener)
	}()

	p.log.Info("waiting for browser login", zap.String("url", authURL))
	_, _ = fmt.Fprintf(os.Stderr, "Open the following URL in your browser:\n%s\n", authURL)
	_ = openBrowser(authURL)

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil, ctx.Err()
	case err := <-errCh:
		_ = server.Close()
		return nil, err
	case result := <-resultCh:
		_ = server.Close()
		return result, nil
	}
}

func newPKCEPair() (string, string, error) {
	verifier, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func openBrowser(url string) error {
	if strings.EqualFold(os.Getenv("KUBEDECK_NO_BROWSER"), "true") {
		return nil
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func (p *Provider) newHTTPClient() (*http.Client, error) {
	tlsConfig, err := loadTLSConfig(p.cfg.CAFile, p.cfg.InsecureSkipTLS)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   30 * time.Second,
	}, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
