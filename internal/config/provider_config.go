package config

import "time"

// ProviderConfig describes the upstream OIDC provider the gateway logs
// users in against. Endpoints are configured explicitly rather than via
// discovery - this gateway integrates with a single, known provider.
type ProviderConfig interface {
	GetIssuerURL() string
	GetAuthorizeURL() string
	GetTokenURL() string
	GetUserInfoURL() string
	GetJWKSURL() string
	GetProviderLogoutURL() string
	GetClientID() string
	GetCallbackURL() string
	GetLogoutRedirectURL() string
	GetScopes() []string
	GetHTTPTimeout() time.Duration
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetIssuerURL() string {
	return GetEnv("OAUTH_ISSUER_URL", "")
}

func (Provider) GetAuthorizeURL() string {
	return GetEnv("OAUTH_AUTHORIZE_URL", "")
}

func (Provider) GetTokenURL() string {
	return GetEnv("OAUTH_TOKEN_URL", "")
}

func (Provider) GetUserInfoURL() string {
	return GetEnv("OAUTH_USERINFO_URL", "")
}

func (Provider) GetJWKSURL() string {
	return GetEnv("OAUTH_JWKS_URL", "")
}

func (Provider) GetProviderLogoutURL() string {
	return GetEnv("OAUTH_PROVIDER_LOGOUT_URL", "")
}

func (Provider) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (Provider) GetCallbackURL() string {
	return GetEnv("OAUTH_CALLBACK_URL", "")
}

func (Provider) GetLogoutRedirectURL() string {
	return GetEnv("OAUTH_LOGOUT_URL", "")
}

func (Provider) GetScopes() []string {
	return []string{"openid", "profile", "email"}
}

func (Provider) GetHTTPTimeout() time.Duration {
	return 10 * time.Second
}
