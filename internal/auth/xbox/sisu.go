package xbox

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"time"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

// Session identifies one SISU login attempt. The ID ties the eventual
// authorize call back to the authenticate that started it; RedirectURI is
// the sign-in URL the user completes in a browser.
type Session struct {
	ID          string
	RedirectURI string
}

// ErrMissingSessionID reports a SISU authenticate response without the
// X-SessionId header. The authorize step cannot run without it.
var ErrMissingSessionID = errors.New("xbox: response carries no session id")

type sisuAuthenticateRequest struct {
	AppID       string    `json:"AppId"`
	DeviceToken string    `json:"DeviceToken"`
	Offers      []string  `json:"Offers"`
	Query       sisuQuery `json:"Query"`
	RedirectURI string    `json:"RedirectUri"`
	Sandbox     string    `json:"Sandbox"`
	TitleID     string    `json:"TitleId"`
	TokenType   string    `json:"TokenType"`
}

type sisuQuery struct {
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// SisuAuthenticate opens a login session: it presents the device token and
// the PKCE challenge and gets back the browser sign-in URL. The session id
// arrives in the X-SessionId response header.
func (c *Client) SisuAuthenticate(ctx context.Context, deviceToken, challenge string, key *ecdsa.PrivateKey, ref time.Time) (Session, time.Time, error) {
	body := sisuAuthenticateRequest{
		AppID:       appID,
		DeviceToken: deviceToken,
		Offers:      []string{offerScope},
		Query: sisuQuery{
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
		},
		RedirectURI: redirectURI,
		Sandbox:     sandbox,
		TitleID:     titleID,
		TokenType:   "code",
	}

	var out struct {
		MsaOauthRedirect string `json:"MsaOauthRedirect"`
	}
	header, date, err := c.do(ctx, request{
		step:            domain.StepSisuAuthenticate,
		url:             c.cfg.SisuAuthenticateURL,
		contractVersion: true,
		body:            body,
		key:             key,
		ref:             ref,
	}, &out)
	if err != nil {
		return Session{}, time.Time{}, err
	}

	sessionID := header.Get("X-SessionId")
	if sessionID == "" {
		return Session{}, time.Time{}, &domain.FlowError{Step: domain.StepSisuAuthenticate, Err: ErrMissingSessionID}
	}

	return Session{ID: sessionID, RedirectURI: out.MsaOauthRedirect}, date, nil
}

// Authorization is the SISU authorize result: the token set XSTS needs.
type Authorization struct {
	DeviceToken string `json:"DeviceToken"`
	TitleToken  Token  `json:"TitleToken"`
	UserToken   Token  `json:"UserToken"`
}

type sisuAuthorizeRequest struct {
	AccessToken  string   `json:"AccessToken"`
	AppID        string   `json:"AppId"`
	DeviceToken  string   `json:"DeviceToken"`
	ProofKey     ProofKey `json:"ProofKey"`
	Sandbox      string   `json:"Sandbox"`
	SessionID    string   `json:"SessionId,omitempty"`
	SiteName     string   `json:"SiteName"`
	RelyingParty string   `json:"RelyingParty"`
}

// SisuAuthorize bridges the OAuth session into the Xbox identity system.
// sessionID is empty on the refresh path. The access token goes out with
// the t= prefix the endpoint expects. This is the one signed call that
// omits the contract version header.
func (c *Client) SisuAuthorize(ctx context.Context, accessToken, deviceToken, sessionID string, key *ecdsa.PrivateKey, ref time.Time) (Authorization, time.Time, error) {
	proofKey, err := NewProofKey(key)
	if err != nil {
		return Authorization{}, time.Time{}, &domain.FlowError{Step: domain.StepSisuAuthorize, Err: err}
	}

	body := sisuAuthorizeRequest{
		AccessToken:  "t=" + accessToken,
		AppID:        appID,
		DeviceToken:  deviceToken,
		ProofKey:     proofKey,
		Sandbox:      sandbox,
		SessionID:    sessionID,
		SiteName:     siteName,
		RelyingParty: sisuRelyingParty,
	}

	var out Authorization
	_, date, err := c.do(ctx, request{
		step: domain.StepSisuAuthorize,
		url:  c.cfg.SisuAuthorizeURL,
		body: body,
		key:  key,
		ref:  ref,
	}, &out)
	if err != nil {
		return Authorization{}, time.Time{}, err
	}
	return out, date, nil
}
