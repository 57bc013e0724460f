// Package live implements the Microsoft account OAuth exchange: redeeming
// the authorization code from the browser sign-in and renewing sessions
// with the refresh grant. These calls are form-encoded and unsigned.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

// Defaults for the Microsoft account identity provider.
const (
	DefaultTokenURL    = "https://login.live.com/oauth20_token.srf"
	DefaultClientID    = "00000000402b5328"
	DefaultScope       = "service::user.auth.xboxlive.com::MBI_SSL"
	DefaultRedirectURI = "https://login.live.com/oauth20_desktop.srf"
)

type Config struct {
	TokenURL    string
	ClientID    string
	Scope       string
	RedirectURI string
	HTTPClient  *http.Client
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Client talks to the identity provider's token endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, http: cfg.HTTPClient}
}

// TokenResponse is an OAuth token grant response.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// ExchangeCode redeems an authorization code together with the PKCE
// verifier whose challenge was presented when the login began.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("scope", c.cfg.Scope)

	return c.requestToken(ctx, domain.StepGetOAuthToken, form)
}

// RefreshGrant exchanges a stored refresh token for a fresh token pair.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", c.cfg.Scope)

	return c.requestToken(ctx, domain.StepRefreshOAuthToken, form)
}

func (c *Client) requestToken(ctx context.Context, step domain.Step, form url.Values) (TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, &domain.FlowError{Step: step, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenResponse{}, &domain.FlowError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, &domain.FlowError{Step: step, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, &domain.FlowError{Step: step, Status: resp.StatusCode, Body: string(raw)}
	}

	var token TokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return TokenResponse{}, &domain.FlowError{Step: step, Status: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}

	return token, nil
}
