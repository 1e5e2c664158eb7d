package config

// ExchangeConfig describes the trust-broker endpoint used for the secondary
// token exchange. The broker trades the provider access token for an
// organization-scoped token carrying the `organizations` claim.
type ExchangeConfig interface {
	GetExchangeTokenURL() string
	GetExchangeClientID() string
	GetOrganizationHandle() string
	GetExchangeScopes() []string
}

type Exchange struct{}

var _ ExchangeConfig = Exchange{}

func (Exchange) GetExchangeTokenURL() string {
	return GetEnv("EXCHANGE_TOKEN_URL", "")
}

func (Exchange) GetExchangeClientID() string {
	return GetEnv("EXCHANGE_CLIENT_ID", "")
}

func (Exchange) GetOrganizationHandle() string {
	return GetEnv("EXCHANGE_ORG_HANDLE", "")
}

// GetExchangeScopes returns the fixed scope set requested from the broker.
// The broker rejects per-request scope variation, so this is configuration
// rather than a flow parameter.
func (Exchange) GetExchangeScopes() []string {
	return []string{"openid", "internal_organization_view"}
}
