package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubedeck/kubedeck/pkg/broker"
)

const (
	// refreshSkew forces a refresh when the cached access token is about to
	// expire, so callers never receive a token with seconds of life left.
	refreshSkew = 2 * time.Minute

	// defaultTokenLifetime is assumed when the provider omits an expiry.
	// This is a policy guess, not a protocol guarantee.
	defaultTokenLifetime = time.Hour
)

// Credential binds one authentication record to the provider's flows and the
// token cache. The broker rebuilds it whenever the record changes; it never
// mutates its record.
type Credential struct {
	provider *Provider
	cache    *TokenCache
	record   *broker.AuthRecord
	log      *zap.Logger
}

// NewFactory returns the credential factory the broker's holder uses to
// rebuild the live credential from whatever record is on disk.
func NewFactory(provider *Provider, cache *TokenCache, log *zap.Logger) broker.CredentialFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return func(record *broker.AuthRecord) (broker.Credential, error) {
		return &Credential{provider: provider, cache: cache, record: record, log: log}, nil
	}
}

// SilentAcquire returns a token without any user interaction: the cached
// access token when it is still fresh and covers the requested scopes, a
// refresh-token exchange otherwise. (nil, nil) means no resumable session.
func (c *Credential) SilentAcquire(ctx context.Context, scopes []string) (*broker.TokenResult, error) {
	if c.record == nil {
		return nil, nil
	}
	stored, ok, err := c.cache.Get(c.record.HomeAccountID)
	if err != nil {
		c.log.Warn("token cache read failed", zap.Error(err))
		ok = false
	}
	if !ok {
		return nil, nil
	}
	if stored.AccessToken != "" && time.Until(stored.Expiry) > refreshSkew && scopesCovered(stored.Scopes, scopes) {
		return &broker.TokenResult{Token: stored.AccessToken, ExpiresOn: stored.Expiry}, nil
	}
	if stored.RefreshToken == "" {
		return nil, nil
	}
	return c.refresh(ctx, stored, scopes)
}

func (c *Credential) refresh(ctx context.Context, stored StoredToken, scopes []string) (*broker.TokenResult, error) {
	requested := mergeScopes(stored.Scopes, scopes)
	refreshed, err := c.provider.refreshToken(ctx, stored.RefreshToken, requested)
	if err != nil {
		if errors.Is(err, errInvalidGrant) {
			// Refresh token revoked or expired: the session is gone, which
			// is "not logged in" rather than a mechanism failure.
			c.log.Info("refresh token rejected, session ended",
				zap.String("account", c.record.HomeAccountID))
			_ = c.cache.Delete(c.record.HomeAccountID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	// Per RFC 6749 §5.1 a response without a scope field grants exactly what
	// was requested; otherwise only the echoed scopes were granted.
	granted := requested
	if refreshed.Scope != "" {
		granted = normalizeScopes(strings.Fields(refreshed.Scope))
	}

	next := StoredToken{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		TokenType:    refreshed.TokenType,
		Expiry:       time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second),
		IDToken:      refreshed.IDToken,
		Scopes:       granted,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}
	if next.IDToken == "" {
		next.IDToken = stored.IDToken
	}
	if refreshed.ExpiresIn == 0 {
		next.Expiry = time.Now().Add(defaultTokenLifetime)
		c.log.Warn("provider did not report token expiry, assuming one hour")
	}
	if err := c.cache.Put(c.record.HomeAccountID, next); err != nil {
		// A stale cache only costs an extra refresh next time.
		c.log.Warn("failed to persist refreshed token", zap.Error(err))
	}
	if !scopesCovered(granted, scopes) {
		// The provider narrowed the grant; the caller must escalate to an
		// interactive consent instead of receiving an under-scoped token.
		c.log.Warn("refreshed token does not cover requested scopes",
			zap.Strings("requested", normalizeScopes(scopes)),
			zap.Strings("granted", granted))
		return nil, nil
	}
	return &broker.TokenResult{Token: next.AccessToken, ExpiresOn: next.Expiry}, nil
}

// InteractiveAuthenticate runs the configured interactive grant and returns
// a fresh record for the broker to persist, with the session tokens already
// cached under the new account id.
func (c *Credential) InteractiveAuthenticate(ctx context.Context, scopes []string) (*broker.LoginOutcome, error) {
	result, err := c.provider.Authenticate(ctx, scopes)
	if err != nil {
		return nil, err
	}
	expiry := result.Token.Expiry
	if !expiry.After(time.Now().Add(time.Minute)) {
		expiry = time.Now().Add(defaultTokenLifetime)
		c.log.Warn("provider did not report a usable token expiry, assuming one hour")
	}

	claimsSource := result.IDToken
	if claimsSource == "" {
		claimsSource = result.Token.AccessToken
	}
	claims := broker.ExtractClaims(claimsSource)

	record := &broker.AuthRecord{
		Authority:       c.provider.cfg.Authority,
		ClientID:        c.provider.cfg.ClientID,
		TenantID:        claims.TenantID,
		Username:        claims.Username,
		HomeAccountID:   uuid.NewString(),
		AuthenticatedAt: time.Now().UTC(),
	}
	stored := StoredToken{
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,
		TokenType:    result.Token.TokenType,
		Expiry:       expiry,
		IDToken:      result.IDToken,
		Scopes:       normalizeScopes(scopes),
	}
	if err := c.cache.Put(record.HomeAccountID, stored); err != nil {
		return nil, fmt.Errorf("failed to persist session tokens: %w", err)
	}
	return &broker.LoginOutcome{
		Record:  record,
		IDToken: result.IDToken,
		Token:   &broker.TokenResult{Token: result.Token.AccessToken, ExpiresOn: expiry},
	}, nil
}

func normalizeScopes(scopes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func mergeScopes(a, b []string) []string {
	return normalizeScopes(append(append([]string{}, a...), b...))
}

// scopesCovered reports whether every requested scope was part of the scope
// set the cached token was minted for.
func scopesCovered(granted, requested []string) bool {
	have := map[string]bool{}
	for _, s := range granted {
		have[s] = true
	}
	for _, s := range requested {
		if s != "" && !have[s] {
			return false
		}
	}
	return true
}
