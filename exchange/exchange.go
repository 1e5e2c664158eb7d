// Package exchange implements the secondary token exchange against the
// trust broker (RFC 8693 style). The provider access token obtained from the
// primary code exchange is traded for a delegated, organization-scoped token
// carrying the `organizations` claim.
package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
)

const (
	grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	tokenTypeJWT           = "urn:ietf:params:oauth:token-type:jwt"

	defaultHTTPTimeout = 10 * time.Second

	// maxResponseBodySize caps how much of a broker response is read (1 MB)
	maxResponseBodySize = 1 << 20
)

// Config holds the fixed parameters for the broker exchange. The client ID,
// organization handle, and scope set are deployment configuration, not
// per-request inputs.
type Config struct {
	TokenURL  string
	ClientID  string
	OrgHandle string
	Scopes    []string

	// HTTPClient overrides the default client (primarily for testing).
	HTTPClient *http.Client
}

// Client performs delegated token exchanges against the trust broker.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{config: config, httpClient: httpClient}
}

// oauthError is an OAuth 2.0 error response body (RFC 6749 section 5.2).
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// exchangeResponse decodes the broker response. Only access_token is
// required; everything else is informational.
type exchangeResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	Scope           string `json:"scope"`
}

// Exchange trades subjectToken for a delegated access token. Any non-2xx
// response, timeout, or response missing the access_token field fails with
// ErrDelegatedExchangeFailed; no retry is attempted. Token values are never
// included in returned errors.
func (c *Client) Exchange(ctx context.Context, subjectToken string) (string, error) {
	if subjectToken == "" {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "empty subject token")
	}

	data := url.Values{}
	data.Set("grant_type", grantTypeTokenExchange)
	data.Set("client_id", c.config.ClientID)
	data.Set("subject_token", subjectToken)
	data.Set("subject_token_type", tokenTypeJWT)
	data.Set("requested_token_type", tokenTypeJWT)
	if c.config.OrgHandle != "" {
		data.Set("orgHandle", c.config.OrgHandle)
	}
	if len(c.config.Scopes) > 0 {
		data.Set("scope", strings.Join(c.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "broker request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "reading broker response: %v", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if brokerErr := parseOAuthError(body); brokerErr != nil {
			return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "broker returned status %d: %s - %s",
				resp.StatusCode, brokerErr.Error, brokerErr.ErrorDescription)
		}
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "broker returned status %d", resp.StatusCode)
	}

	var tokenResp exchangeResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "decoding broker response: %v", err)
	}

	if tokenResp.AccessToken == "" {
		return "", errors.Wrapf(errors.ErrDelegatedExchangeFailed, "broker response missing access_token")
	}

	return tokenResp.AccessToken, nil
}

// parseOAuthError attempts to decode an OAuth error body for diagnostics.
// Returns nil when the body is not a recognisable OAuth error.
func parseOAuthError(body []byte) *oauthError {
	var brokerErr oauthError
	if err := json.Unmarshal(body, &brokerErr); err != nil {
		return nil
	}
	if brokerErr.Error == "" {
		return nil
	}
	return &brokerErr
}
