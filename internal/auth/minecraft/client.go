// Package minecraft implements the Minecraft services side of the chain:
// exchanging an XSTS token for a Minecraft access token, checking game
// ownership and fetching the player profile.
package minecraft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/pkg/slogx"
)

const DefaultBaseURL = "https://api.minecraftservices.com"

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, http: cfg.HTTPClient}
}

// LoginResponse is the Minecraft services token minted for a launcher.
type LoginResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// LoginWithXbox exchanges an XSTS token for a Minecraft access token. The
// credential is the composed XBL3.0 string the service expects; the call
// itself carries no bearer authorization.
func (c *Client) LoginWithXbox(ctx context.Context, userHash, xstsToken string) (LoginResponse, error) {
	body := struct {
		Platform string `json:"platform"`
		XToken   string `json:"xtoken"`
	}{
		Platform: "PC_LAUNCHER",
		XToken:   fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken),
	}

	var out LoginResponse
	if err := c.postJSON(ctx, domain.StepMinecraftLogin, "/launcher/login_with_xbox", body, &out); err != nil {
		return LoginResponse{}, err
	}
	return out, nil
}

// CheckEntitlements verifies the signed-in user owns the game. Nothing is
// kept from the response beyond success or failure.
func (c *Client) CheckEntitlements(ctx context.Context, accessToken string) error {
	var out struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	path := "/entitlements/license?requestId=" + uuid.NewString()
	if err := c.getJSON(ctx, domain.StepEntitlements, path, accessToken, &out); err != nil {
		return err
	}

	slogx.FromContext(ctx).Debug("entitlement check complete", "items", len(out.Items))
	return nil
}

// Profile is the player profile behind the stable account id.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetProfile fetches the player profile for the signed-in user.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (Profile, error) {
	var out Profile
	if err := c.getJSON(ctx, domain.StepMinecraftProfile, "/minecraft/profile", accessToken, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, step domain.Step, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &domain.FlowError{Step: step, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &domain.FlowError{Step: step, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.send(req, step, out)
}

func (c *Client) getJSON(ctx context.Context, step domain.Step, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return &domain.FlowError{Step: step, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return c.send(req, step, out)
}

func (c *Client) send(req *http.Request, step domain.Step, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.FlowError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.FlowError{Step: step, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.FlowError{Step: step, Status: resp.StatusCode, Body: string(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.FlowError{Step: step, Status: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
