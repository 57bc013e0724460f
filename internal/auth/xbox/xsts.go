package xbox

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

type xstsRequest struct {
	Properties   xstsProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

type xstsProperties struct {
	SandboxID   string   `json:"SandboxId"`
	UserTokens  []string `json:"UserTokens"`
	DeviceToken string   `json:"DeviceToken"`
	TitleToken  string   `json:"TitleToken"`
}

// XSTSAuthorize mints the token scoped to the Minecraft services relying
// party from a SISU authorization result. Its display claims carry the
// user hash the Minecraft credential string is assembled from.
func (c *Client) XSTSAuthorize(ctx context.Context, authz Authorization, key *ecdsa.PrivateKey, ref time.Time) (Token, time.Time, error) {
	body := xstsRequest{
		Properties: xstsProperties{
			SandboxID:   sandbox,
			UserTokens:  []string{authz.UserToken.Token},
			DeviceToken: authz.DeviceToken,
			TitleToken:  authz.TitleToken.Token,
		},
		RelyingParty: minecraftRelyingParty,
		TokenType:    tokenTypeJWT,
	}

	var out Token
	_, date, err := c.do(ctx, request{
		step:            domain.StepXstsAuthorize,
		url:             c.cfg.XstsAuthorizeURL,
		contractVersion: true,
		body:            body,
		key:             key,
		ref:             ref,
	}, &out)
	if err != nil {
		return Token{}, time.Time{}, err
	}
	return out, date, nil
}
