// Package claims extracts claim mappings from compact signed tokens.
//
// Decoding is structural only: the payload segment is base64url-decoded and
// parsed, but the signature is never verified. Verification against the
// provider's JWKS is a separate concern and deliberately not handled here.
package claims

import (
	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
)

// Claims is a mapping from claim name to value, supporting nested values
// such as the `organizations` sequence on exchanged tokens.
type Claims map[string]any

// Decode splits a compact token into its segments and parses the payload
// into a claim mapping. Returns ErrMalformedToken if the token does not have
// the expected three-segment structure or the payload is not valid JSON.
func Decode(rawToken string) (Claims, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedToken, "claims.Decode: %v", err)
	}

	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrMalformedToken, "claims.Decode: unexpected claims type")
	}

	return Claims(mapClaims), nil
}

// String returns the named claim as a string, or "" when absent or not a string.
func (c Claims) String(name string) string {
	value, _ := c[name].(string)
	return value
}

// Organizations returns the `organizations` claim as an ordered slice of
// organization identifiers. The broker emits either plain strings or objects
// carrying an id; both are accepted, preserving claim order.
func (c Claims) Organizations() []string {
	raw, ok := c["organizations"].([]any)
	if !ok {
		return nil
	}

	if orgs := toStringSlice(raw); len(orgs) == len(raw) {
		return orgs
	}

	orgs := make([]string, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := obj["id"].(string); ok && id != "" {
			orgs = append(orgs, id)
			continue
		}
		if handle, ok := obj["orgHandle"].(string); ok && handle != "" {
			orgs = append(orgs, handle)
		}
	}
	return orgs
}

// toStringSlice keeps the string members of a decoded JSON array,
// preserving order.
func toStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}
