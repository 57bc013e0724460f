package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production launcher backend.
const DefaultBaseURL = "https://api.deepslate.gg"

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

// HTTPIssuer requests launcher tokens from the backend over HTTP.
type HTTPIssuer struct {
	cfg  Config
	http *http.Client
}

func NewHTTPIssuer(cfg Config) *HTTPIssuer {
	cfg = cfg.withDefaults()
	return &HTTPIssuer{cfg: cfg, http: cfg.HTTPClient}
}

func (i *HTTPIssuer) IssueToken(ctx context.Context, accessToken string, req IssueRequest) (string, error) {
	payload, err := json.Marshal(struct {
		Fingerprint string `json:"fingerprint"`
		Username    string `json:"username"`
		AccountID   string `json:"account_id"`
		Mode        string `json:"mode"`
	}{
		Fingerprint: req.Fingerprint,
		Username:    req.Username,
		AccountID:   req.AccountID,
		Mode:        string(req.Mode),
	})
	if err != nil {
		return "", fmt.Errorf("launcher: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.BaseURL+"/v1/launcher/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("launcher: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := i.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("launcher: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("launcher: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("launcher: backend returned status %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("launcher: failed to decode response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("launcher: backend returned an empty token")
	}

	return out.Token, nil
}
