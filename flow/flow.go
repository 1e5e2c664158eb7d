// Package flow drives the authorization-code + PKCE login state machine:
// build the authorization request, validate the callback, run the primary
// and delegated token exchanges, and bind the resulting identity to the
// session.
package flow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-login-gateway/claims"
	"github.com/jrsteele09/go-login-gateway/identity"
	"github.com/jrsteele09/go-login-gateway/internal/errors"
	"github.com/jrsteele09/go-login-gateway/sessions"
)

const (
	stateGenerationLength    = 32
	verifierGenerationLength = 32

	defaultHTTPTimeout = 10 * time.Second
)

// DelegatedExchanger trades the primary access token for an
// organization-scoped token at the trust broker.
type DelegatedExchanger interface {
	Exchange(ctx context.Context, subjectToken string) (string, error)
}

// Config holds the provider parameters for the flow engine. Endpoints are
// fixed configuration; no discovery is performed.
type Config struct {
	ClientID         string
	AuthorizeURL     string
	TokenURL         string
	RedirectURL      string
	Scopes           []string
	ServerInstanceID string

	// HTTPClient overrides the client used for the primary exchange
	// (primarily for testing).
	HTTPClient *http.Client
}

// Service orchestrates the login flow. All session mutation goes through
// the sessions.Repo: load, mutate, save - never ambient state.
type Service struct {
	sessions         sessions.Repo
	exchanger        DelegatedExchanger
	oauthConfig      *oauth2.Config
	serverInstanceID string
	httpClient       *http.Client
	nowTime          func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a flow Service with required dependencies.
func NewService(sessionRepo sessions.Repo, exchanger DelegatedExchanger, config Config, options ...ServiceOption) (*Service, error) {
	if sessionRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewService] session repo is required")
	}
	if exchanger == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewService] delegated exchanger is required")
	}
	if config.ClientID == "" || config.AuthorizeURL == "" || config.TokenURL == "" {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewService] client ID and provider endpoints are required")
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	service := &Service{
		sessions:  sessionRepo,
		exchanger: exchanger,
		oauthConfig: &oauth2.Config{
			ClientID: config.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthorizeURL,
				TokenURL: config.TokenURL,
			},
			RedirectURL: config.RedirectURL,
			Scopes:      scopes,
		},
		serverInstanceID: config.ServerInstanceID,
		httpClient:       httpClient,
		nowTime:          time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// InitiateLogin generates fresh state and PKCE material, persists the flow
// context on the session, and returns the provider authorization URL.
// Persistence is synchronous: the redirect URL is only returned once the
// flow context is durably stored, so a fast-following callback can always
// find its correlation state. A prior in-flight context is overwritten.
func (s *Service) InitiateLogin(ctx context.Context, session *sessions.Session) (string, error) {
	state := generateRandomString(stateGenerationLength)
	verifier := generateRandomString(verifierGenerationLength)
	challenge := generateCodeChallenge(verifier)

	session.FlowContext = &sessions.FlowContext{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
		CreatedAt:     s.nowTime(),
	}

	if err := s.sessions.Upsert(ctx, session.ID, session); err != nil {
		return "", errors.Wrapf(errors.ErrSessionPersistenceFailed, "[InitiateLogin] persisting flow context: %v", err)
	}

	authURL := s.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return authURL, nil
}

// HandleCallback validates the provider callback against the stored flow
// context, runs the two token exchanges in order, assembles the identity
// profile, and binds it to the session. Any failure leaves the session's
// identity unset; no identity becomes visible before every step succeeds.
func (s *Service) HandleCallback(ctx context.Context, session *sessions.Session, receivedState, authorizationCode string) (*identity.Profile, error) {
	flowContext := session.FlowContext
	if flowContext == nil {
		return nil, errors.Wrapf(errors.ErrStateMismatch, "[HandleCallback] no login attempt in flight")
	}
	if receivedState == "" || receivedState != flowContext.State {
		return nil, errors.Wrapf(errors.ErrStateMismatch, "[HandleCallback] callback state does not match stored state")
	}

	// The state is single-use: consume the flow context before talking to
	// the provider so a replayed callback cannot reuse it.
	session.FlowContext = nil
	if err := s.sessions.Upsert(ctx, session.ID, session); err != nil {
		return nil, errors.Wrapf(errors.ErrSessionPersistenceFailed, "[HandleCallback] consuming flow context: %v", err)
	}

	// Primary exchange: authorization code + PKCE verifier for a TokenSet.
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauthConfig.Exchange(exchangeCtx, authorizationCode,
		oauth2.SetAuthURLParam("code_verifier", flowContext.CodeVerifier),
	)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTokenExchangeFailed, "[HandleCallback] code exchange: %v", err)
	}
	if token.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrTokenExchangeFailed, "[HandleCallback] provider returned empty access token")
	}

	// Delegated exchange requires the primary token; the two calls are
	// strictly sequential. A broker failure is a hard failure of the login
	// attempt - never continue with a degraded identity.
	exchangedToken, err := s.exchanger.Exchange(ctx, token.AccessToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[HandleCallback] delegated exchange")
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	idClaims, err := claims.Decode(rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[HandleCallback] decoding ID token")
	}
	// The primary access token may be opaque rather than a JWT; its claims
	// only feed the nickname fallback, so decode failures are tolerated.
	accessClaims, err := claims.Decode(token.AccessToken)
	if err != nil {
		accessClaims = claims.Claims{}
	}
	exchangedClaims, err := claims.Decode(exchangedToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[HandleCallback] decoding exchanged token")
	}

	// The provider omits given_name for some account types; its nickname
	// claim on the access token stands in.
	firstName := idClaims.String("given_name")
	if firstName == "" {
		firstName = accessClaims.String("nickname")
	}

	profile := &identity.Profile{
		Email:            idClaims.String("email"),
		FirstName:        firstName,
		LastName:         idClaims.String("family_name"),
		Organizations:    exchangedClaims.Organizations(),
		AccessToken:      token.AccessToken,
		ExchangedToken:   exchangedToken,
		ServerInstanceID: s.serverInstanceID,
	}

	record, err := identity.ToSessionRecord(profile)
	if err != nil {
		return nil, errors.Wrapf(err, "[HandleCallback] serializing identity")
	}
	session.Identity = record
	if err := s.sessions.Upsert(ctx, session.ID, session); err != nil {
		session.Identity = nil
		return nil, errors.Wrapf(errors.ErrSessionPersistenceFailed, "[HandleCallback] binding identity: %v", err)
	}

	return profile, nil
}

// CurrentIdentity reconstructs the identity bound to the session. Sessions
// without an identity report ErrNotAuthenticated; corrupt records surface
// ErrMalformedSession rather than a partial profile.
func (s *Service) CurrentIdentity(session *sessions.Session) (*identity.Profile, error) {
	if !session.Authenticated() {
		return nil, errors.ErrNotAuthenticated
	}
	return identity.FromSessionRecord(session.Identity)
}

// Logout destroys the session record entirely. The next request gets a
// fresh, non-pre-existing session identifier. Logging out an already
// destroyed session is a no-op.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return errors.Wrapf(err, "[Logout] destroying session")
	}
	return nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
