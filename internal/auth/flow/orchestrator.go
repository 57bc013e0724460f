// Package flow sequences the authentication chain: the browser login
// handshake, the code exchange that completes it and the refresh path that
// renews existing sessions.
package flow

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/device"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/live"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/minecraft"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/xbox"
	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
	"github.com/deepslate-launcher/deepslate-core/pkg/idx"
	"github.com/deepslate-launcher/deepslate-core/pkg/slogx"
)

// AccountDirectory is the slice of the credential store the orchestrator
// needs: looking up an existing account so a re-login preserves what it
// already had, and upserting the finished login.
type AccountDirectory interface {
	Account(id string) (domain.Account, bool)
	UpsertAccount(acct domain.Account) error
}

// Orchestrator drives the federation handshake end to end.
type Orchestrator struct {
	device   *device.Manager
	xbox     *xbox.Client
	live     *live.Client
	mc       *minecraft.Client
	accounts AccountDirectory
	log      *slog.Logger
}

func New(dev *device.Manager, xboxClient *xbox.Client, liveClient *live.Client, mcClient *minecraft.Client, accounts AccountDirectory, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		device:   dev,
		xbox:     xboxClient,
		live:     liveClient,
		mc:       mcClient,
		accounts: accounts,
		log:      log,
	}
}

// BeginLogin opens a login attempt: it ensures a device token, generates a
// PKCE pair and asks SISU for the browser sign-in URL. If the authenticate
// call fails on a reused device token, one retry runs with a regenerated
// registration and a fresh PKCE pair; a token that was freshly minted
// fails straight away.
func (o *Orchestrator) BeginLogin(ctx context.Context) (domain.LoginFlow, error) {
	ctx = slogx.WithFlowID(ctx, idx.New().String())

	reg, ref, reused, err := o.device.EnsureDeviceToken(ctx, false)
	if err != nil {
		return domain.LoginFlow{}, err
	}

	flow, err := o.authenticate(ctx, reg, ref)
	if err != nil && reused {
		o.log.Warn("sisu authenticate failed on a reused device token, retrying with a fresh one", "error", err)

		reg, ref, _, err = o.device.EnsureDeviceToken(ctx, true)
		if err != nil {
			return domain.LoginFlow{}, err
		}
		flow, err = o.authenticate(ctx, reg, ref)
	}
	if err != nil {
		return domain.LoginFlow{}, err
	}

	o.log.Info("login flow started", "session", flow.SessionID)
	return flow, nil
}

// authenticate generates a fresh PKCE pair and runs SISU authenticate.
func (o *Orchestrator) authenticate(ctx context.Context, reg *domain.DeviceRegistration, ref time.Time) (domain.LoginFlow, error) {
	verifier, err := cryptox.RandomHex(cryptox.VerifierSize)
	if err != nil {
		return domain.LoginFlow{}, err
	}
	challenge := codeChallenge(verifier)

	key, err := cryptox.ParseES256Key(reg.PrivateKeyPEM)
	if err != nil {
		return domain.LoginFlow{}, err
	}

	session, _, err := o.xbox.SisuAuthenticate(ctx, reg.Token.Token, challenge, key, ref)
	if err != nil {
		return domain.LoginFlow{}, err
	}

	return domain.LoginFlow{
		Verifier:    verifier,
		Challenge:   challenge,
		SessionID:   session.ID,
		RedirectURI: session.RedirectURI,
	}, nil
}

// codeChallenge derives the S256 challenge for a PKCE verifier.
func codeChallenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// FinishLogin completes the chain once the user pasted the redirect back:
// it redeems the authorization code and walks the token exchanges through
// to a stored account.
func (o *Orchestrator) FinishLogin(ctx context.Context, code string, flow domain.LoginFlow) (domain.Account, error) {
	ctx = slogx.WithFlowID(ctx, idx.New().String())

	// 1. Redeem the authorization code with the PKCE verifier.
	token, err := o.live.ExchangeCode(ctx, code, flow.Verifier)
	if err != nil {
		return domain.Account{}, err
	}

	// 2. Bridge the OAuth session to a Minecraft token.
	result, err := o.exchangeChain(ctx, token.AccessToken, flow.SessionID)
	if err != nil {
		return domain.Account{}, err
	}

	// 3. Verify ownership before trusting the profile.
	if err := o.mc.CheckEntitlements(ctx, result.login.AccessToken); err != nil {
		return domain.Account{}, err
	}

	// 4. The profile carries the stable account id and display name.
	profile, err := o.mc.GetProfile(ctx, result.login.AccessToken)
	if err != nil {
		return domain.Account{}, err
	}

	acct := domain.Account{
		ID:           profile.ID,
		Username:     profile.Name,
		AccessToken:  result.login.AccessToken,
		RefreshToken: token.RefreshToken,
		Expires:      result.expires,
	}

	// 5. A re-login keeps the launcher tokens and active flag the account
	// already had.
	if existing, ok := o.accounts.Account(profile.ID); ok {
		acct.LauncherTokens = existing.LauncherTokens
		acct.Active = existing.Active
	}

	if err := o.accounts.UpsertAccount(acct); err != nil {
		return domain.Account{}, err
	}

	o.log.Info("login complete", "account", acct.ID, "username", acct.Username)
	return acct, nil
}

// Refresh renews an existing session from its refresh token. The caller
// persists the result; this method only rebuilds the credentials.
func (o *Orchestrator) Refresh(ctx context.Context, existing domain.Account) (domain.Account, error) {
	ctx = slogx.WithFlowID(ctx, idx.New().String())

	// 1. Trade the refresh token for a new OAuth pair.
	token, err := o.live.RefreshGrant(ctx, existing.RefreshToken)
	if err != nil {
		return domain.Account{}, err
	}

	// 2. Re-run the exchange chain. The refresh path carries no session id.
	result, err := o.exchangeChain(ctx, token.AccessToken, "")
	if err != nil {
		return domain.Account{}, err
	}

	acct := existing
	acct.AccessToken = result.login.AccessToken
	acct.Expires = result.expires
	if token.RefreshToken != "" {
		acct.RefreshToken = token.RefreshToken
	}

	o.log.Info("credentials refreshed", "account", acct.ID, "expires", acct.Expires)
	return acct, nil
}

// chainResult is what the signed exchange chain produces.
type chainResult struct {
	login   minecraft.LoginResponse
	expires time.Time
}

// exchangeChain walks an OAuth access token through SISU authorize, XSTS
// and the Minecraft token exchange. Each step signs with the device key
// against the previous response's server date.
func (o *Orchestrator) exchangeChain(ctx context.Context, accessToken, sessionID string) (chainResult, error) {
	reg, ref, _, err := o.device.EnsureDeviceToken(ctx, false)
	if err != nil {
		return chainResult{}, err
	}

	key, err := cryptox.ParseES256Key(reg.PrivateKeyPEM)
	if err != nil {
		return chainResult{}, err
	}

	authz, ref, err := o.xbox.SisuAuthorize(ctx, accessToken, reg.Token.Token, sessionID, key, ref)
	if err != nil {
		return chainResult{}, err
	}

	xsts, _, err := o.xbox.XSTSAuthorize(ctx, authz, key, ref)
	if err != nil {
		return chainResult{}, err
	}

	uhs, err := xsts.UserHash()
	if err != nil {
		return chainResult{}, &domain.FlowError{Step: domain.StepXstsAuthorize, Err: err}
	}

	login, err := o.mc.LoginWithXbox(ctx, uhs, xsts.Token)
	if err != nil {
		return chainResult{}, err
	}

	return chainResult{
		login:   login,
		expires: time.Now().Add(time.Duration(login.ExpiresIn) * time.Second),
	}, nil
}
