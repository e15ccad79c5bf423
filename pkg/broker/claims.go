package broker

import (
	"github.com/golang-jwt/jwt/v4"
)

// Claims are display fields decoded from a token payload. They carry no
// authorization weight: the decode is unverified and exists only so the UI
// can show who is logged in.
type Claims struct {
	Username string
	TenantID string
}

// Empty reports whether no display claims could be extracted.
func (c Claims) Empty() bool { return c.Username == "" && c.TenantID == "" }

// ExtractClaims decodes display claims from the payload segment of token.
// Any malformed input returns empty claims rather than an error; claim
// display is cosmetic and must never abort a successful acquisition.
func ExtractClaims(token string) Claims {
	if token == "" {
		return Claims{}
	}
	parser := jwt.Parser{}
	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, mapClaims); err != nil {
		return Claims{}
	}
	var claims Claims
	for _, key := range []string{"email", "preferred_username", "upn", "sub"} {
		if value, ok := mapClaims[key].(string); ok && value != "" {
			claims.Username = value
			break
		}
	}
	if tenant, ok := mapClaims["tid"].(string); ok {
		claims.TenantID = tenant
	}
	return claims
}
