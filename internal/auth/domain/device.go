package domain

import (
	"encoding/json"
	"time"
)

// DeviceToken is an Xbox Live device token as stored on disk. DisplayClaims
// is kept raw because its shape differs between token services and nothing
// we do reads into it for device tokens.
type DeviceToken struct {
	IssueInstant  time.Time       `json:"issue_instant"`
	NotAfter      time.Time       `json:"not_after"`
	Token         string          `json:"token"`
	DisplayClaims json.RawMessage `json:"display_claims,omitempty"`
}

// Valid reports whether the token exists and has not expired at now.
func (t *DeviceToken) Valid(now time.Time) bool {
	if t == nil || t.Token == "" {
		return false
	}
	return t.NotAfter.After(now)
}

// DeviceRegistration binds a generated device identity to its proof key and
// the most recent device token minted against that key. One registration is
// shared by every account in a store.
type DeviceRegistration struct {
	ID            string       `json:"id"`
	PrivateKeyPEM string       `json:"private_key"`
	X             string       `json:"x"`
	Y             string       `json:"y"`
	Token         *DeviceToken `json:"token,omitempty"`
}

// Clone returns a deep copy so callers can hand registrations across
// goroutines without sharing the token pointer.
func (r *DeviceRegistration) Clone() *DeviceRegistration {
	if r == nil {
		return nil
	}
	out := *r
	if r.Token != nil {
		tok := *r.Token
		if r.Token.DisplayClaims != nil {
			tok.DisplayClaims = append(json.RawMessage(nil), r.Token.DisplayClaims...)
		}
		out.Token = &tok
	}
	return &out
}
