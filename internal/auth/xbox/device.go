package xbox

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

type deviceTokenRequest struct {
	Properties   deviceTokenProperties `json:"Properties"`
	RelyingParty string                `json:"RelyingParty"`
	TokenType    string                `json:"TokenType"`
}

type deviceTokenProperties struct {
	AuthMethod string   `json:"AuthMethod"`
	ID         string   `json:"Id"`
	DeviceType string   `json:"DeviceType"`
	Version    string   `json:"Version"`
	ProofKey   ProofKey `json:"ProofKey"`
}

// RequestDeviceToken registers the device proof key with the federation
// and returns a device token bound to it. The device id goes out braced,
// the form the device auth service expects.
func (c *Client) RequestDeviceToken(ctx context.Context, deviceID string, key *ecdsa.PrivateKey, ref time.Time) (Token, time.Time, error) {
	proofKey, err := NewProofKey(key)
	if err != nil {
		return Token{}, time.Time{}, &domain.FlowError{Step: domain.StepGetDeviceToken, Err: err}
	}

	body := deviceTokenRequest{
		Properties: deviceTokenProperties{
			AuthMethod: "ProofOfPossession",
			ID:         "{" + deviceID + "}",
			DeviceType: deviceType,
			Version:    deviceVersion,
			ProofKey:   proofKey,
		},
		RelyingParty: deviceRelyingParty,
		TokenType:    tokenTypeJWT,
	}

	var token Token
	_, date, err := c.do(ctx, request{
		step:            domain.StepGetDeviceToken,
		url:             c.cfg.DeviceAuthURL,
		contractVersion: true,
		body:            body,
		key:             key,
		ref:             ref,
	}, &token)
	if err != nil {
		return Token{}, time.Time{}, err
	}
	return token, date, nil
}
