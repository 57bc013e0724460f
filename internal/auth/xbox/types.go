// Package xbox implements the signed Xbox Live side of the authentication
// chain: device token issuance, the two SISU steps and XSTS authorization.
// Every request it sends is proof-of-possession signed with the device key.
package xbox

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
)

// Wire constants for the retail federation.
const (
	appID       = "00000000402b5328"
	offerScope  = "service::user.auth.xboxlive.com::MBI_SSL"
	redirectURI = "https://login.live.com/oauth20_desktop.srf"
	sandbox     = "RETAIL"
	titleID     = "1794566092"
	siteName    = "user.auth.xboxlive.com"

	deviceType    = "Win32"
	deviceVersion = "10.16.0"

	deviceRelyingParty    = "http://auth.xboxlive.com"
	sisuRelyingParty      = "http://xboxlive.com"
	minecraftRelyingParty = "rp://api.minecraftservices.com/"

	tokenTypeJWT = "JWT"
)

// ProofKey is the JWK form of the device proof key embedded in signed
// request bodies. Coordinates are base64url without padding.
type ProofKey struct {
	Kty string `json:"kty"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Crv string `json:"crv"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// NewProofKey builds the ES256 JWK for the public half of key.
func NewProofKey(key *ecdsa.PrivateKey) (ProofKey, error) {
	x, y, err := cryptox.PublicCoordinates(key)
	if err != nil {
		return ProofKey{}, err
	}
	return ProofKey{
		Kty: "EC",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
		Crv: "P-256",
		Alg: "ES256",
		Use: "sig",
	}, nil
}

// Token is a token issued by the Xbox Live services. The wire format uses
// Pascal-case field names.
type Token struct {
	IssueInstant  time.Time       `json:"IssueInstant"`
	NotAfter      time.Time       `json:"NotAfter"`
	Token         string          `json:"Token"`
	DisplayClaims json.RawMessage `json:"DisplayClaims,omitempty"`
}

// ErrMissingUserHash reports an XSTS token without the xui user hash claim.
// The Minecraft credential string cannot be assembled without it.
var ErrMissingUserHash = errors.New("xbox: token carries no user hash claim")

// UserHash extracts the uhs display claim from an XSTS token.
func (t Token) UserHash() (string, error) {
	var claims struct {
		XUI []struct {
			UserHash string `json:"uhs"`
		} `json:"xui"`
	}
	if err := json.Unmarshal(t.DisplayClaims, &claims); err != nil {
		return "", fmt.Errorf("xbox: failed to decode display claims: %w", err)
	}
	if len(claims.XUI) == 0 || claims.XUI[0].UserHash == "" {
		return "", ErrMissingUserHash
	}
	return claims.XUI[0].UserHash, nil
}
