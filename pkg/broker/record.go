package broker

import "time"

// AuthRecord identifies a previously authenticated principal. It is issued
// by a successful interactive login, replaced wholesale on every subsequent
// interactive login, and never mutated in place. Its presence on disk means
// silent acquisition should be attempted before prompting the user.
type AuthRecord struct {
	Authority       string    `json:"authority"`
	ClientID        string    `json:"clientID"`
	TenantID        string    `json:"tenantID,omitempty"`
	Username        string    `json:"username,omitempty"`
	HomeAccountID   string    `json:"homeAccountID"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

// TokenResult is the outcome of a successful token acquisition. It is
// produced fresh on every call; refresh-before-expiry caching belongs to the
// identity layer, not the broker.
type TokenResult struct {
	Token     string
	ExpiresOn time.Time
}

// LoginOutcome is what an interactive authentication hands back to the
// broker: the new record to persist plus the raw tokens for claim display.
type LoginOutcome struct {
	Record  *AuthRecord
	IDToken string
	Token   *TokenResult
}
