package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

// unsignedJWT builds a three-segment token whose payload carries the given
// claims. Good enough for the unverified display decode.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "."
}

// fakeIdentity is a scriptable identity layer shared by the credentials the
// fake factory hands out. It tracks how many operations overlap so tests can
// assert the serializer keeps the lane single-file.
type fakeIdentity struct {
	t *testing.T

	mu               sync.Mutex
	active           int
	maxActive        int
	silentCalls      int
	interactiveCalls int
	sessions         map[string]string

	silentErr      error
	interactiveErr error
	opDelay        time.Duration
}

func newFakeIdentity(t *testing.T) *fakeIdentity {
	return &fakeIdentity{t: t, sessions: map[string]string{}}
}

func (f *fakeIdentity) factory() CredentialFactory {
	return func(record *AuthRecord) (Credential, error) {
		return &fakeCredential{f: f, record: record}, nil
	}
}

func (f *fakeIdentity) enter() {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	if f.opDelay > 0 {
		time.Sleep(f.opDelay)
	}
}

func (f *fakeIdentity) exit() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeIdentity) counts() (silent, interactive, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.silentCalls, f.interactiveCalls, f.maxActive
}

type fakeCredential struct {
	f      *fakeIdentity
	record *AuthRecord
}

func (c *fakeCredential) SilentAcquire(_ context.Context, _ []string) (*TokenResult, error) {
	c.f.enter()
	defer c.f.exit()
	c.f.mu.Lock()
	c.f.silentCalls++
	err := c.f.silentErr
	var token string
	var ok bool
	if c.record != nil {
		token, ok = c.f.sessions[c.record.HomeAccountID]
	}
	c.f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &TokenResult{Token: token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func (c *fakeCredential) InteractiveAuthenticate(_ context.Context, _ []string) (*LoginOutcome, error) {
	c.f.enter()
	defer c.f.exit()
	c.f.mu.Lock()
	c.f.interactiveCalls++
	calls := c.f.interactiveCalls
	err := c.f.interactiveErr
	c.f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	accountID := fmt.Sprintf("account-%d", calls)
	idToken := unsignedJWT(c.f.t, map[string]any{
		"preferred_username": "dev@example.com",
		"tid":                "tenant-1",
	})
	accessToken := unsignedJWT(c.f.t, map[string]any{
		"preferred_username": "dev@example.com",
		"tid":                "tenant-1",
		"acct":               accountID,
	})

	c.f.mu.Lock()
	c.f.sessions[accountID] = accessToken
	c.f.mu.Unlock()

	expiry := time.Now().Add(time.Hour)
	return &LoginOutcome{
		Record: &AuthRecord{
			Authority:       "https://login.example.com/tenant-1",
			ClientID:        "kubedeck-client",
			TenantID:        "tenant-1",
			Username:        "dev@example.com",
			HomeAccountID:   accountID,
			AuthenticatedAt: time.Now().UTC(),
		},
		IDToken: idToken,
		Token:   &TokenResult{Token: accessToken, ExpiresOn: expiry},
	}, nil
}
