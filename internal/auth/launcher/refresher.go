// Package launcher keeps the per-mode first-party tokens minted by the
// launcher backend fresh on top of the Minecraft identity.
package launcher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

// IssueRequest is what the launcher backend needs to mint a token.
type IssueRequest struct {
	Fingerprint string
	Username    string
	AccountID   string
	Mode        domain.LauncherMode
}

// Issuer calls the launcher backend. The backend's issuance algorithm is
// opaque to this core.
type Issuer interface {
	IssueToken(ctx context.Context, accessToken string, req IssueRequest) (string, error)
}

// Fingerprinter identifies the device to the backend. Implemented by the
// device manager.
type Fingerprinter interface {
	Fingerprint() (string, error)
}

// Refresher decides when a stored launcher token needs replacing and
// fetches the replacement. Failures never propagate: a stale token is
// better than a broken launcher, so every error degrades to keeping what
// we had.
type Refresher struct {
	issuer Issuer
	device Fingerprinter
	log    *slog.Logger
	parser *jwt.Parser
}

func NewRefresher(issuer Issuer, device Fingerprinter, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		issuer: issuer,
		device: device,
		log:    log,
		parser: jwt.NewParser(),
	}
}

// tokenClaims are the advisory claims read from a launcher token.
type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// EnsureToken returns acct with a fresh token for mode if the stored one
// is stale or force is set. The second return reports whether the account
// changed. On any failure the original account comes back unchanged.
func (r *Refresher) EnsureToken(ctx context.Context, acct domain.Account, mode domain.LauncherMode, force bool) (domain.Account, bool) {
	if !force && !r.stale(acct, mode) {
		return acct, false
	}

	fingerprint, err := r.device.Fingerprint()
	if err != nil {
		r.log.Warn("launcher token refresh skipped", "account", acct.ID, "mode", string(mode), "error", err)
		return acct, false
	}

	// The backend keys accounts without dashes.
	token, err := r.issuer.IssueToken(ctx, acct.AccessToken, IssueRequest{
		Fingerprint: fingerprint,
		Username:    acct.Username,
		AccountID:   strings.ReplaceAll(acct.ID, "-", ""),
		Mode:        mode,
	})
	if err != nil {
		r.log.Warn("launcher token refresh failed", "account", acct.ID, "mode", string(mode), "error", err)
		return acct, false
	}

	acct.LauncherTokens.Set(mode, token)
	r.log.Info("launcher token refreshed", "account", acct.ID, "mode", string(mode))
	return acct, true
}

// stale reports whether the stored token for mode needs replacing. Claims
// are decoded without verifying the signature, so they are a freshness
// hint only, never an authorization decision.
func (r *Refresher) stale(acct domain.Account, mode domain.LauncherMode) bool {
	token := acct.LauncherTokens.Get(mode)
	if token == "" {
		return true
	}

	claims := &tokenClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.Username != acct.Username {
		return true
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return true
	}
	return false
}
