package domain

import "time"

// OfflineAccessToken is the sentinel access token carried by offline
// accounts. Accounts holding it never enter the refresh flow.
const OfflineAccessToken = "offline"

// LauncherMode selects which first-party token slot an operation targets.
type LauncherMode string

const (
	ModeProduction   LauncherMode = "production"
	ModeExperimental LauncherMode = "experimental"
)

// Account is one linked Minecraft account, both the in-memory and on-disk
// representation. AccessToken is the Minecraft services bearer token;
// RefreshToken is the Microsoft OAuth refresh token that renews the whole
// chain. At most one account is Active at a time, enforced by the store.
type Account struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	AccessToken    string         `json:"access_token"`
	RefreshToken   string         `json:"refresh_token"`
	Expires        time.Time      `json:"expires"`
	LauncherTokens LauncherTokens `json:"launcher_tokens"`
	Active         bool           `json:"active"`
}

// Offline reports whether the account is a local-play account that never
// talks to the federation.
func (a Account) Offline() bool {
	return a.AccessToken == OfflineAccessToken
}

// Refreshable reports whether the account can enter the OAuth refresh flow.
func (a Account) Refreshable() bool {
	return !a.Offline() && a.RefreshToken != ""
}

// ExpiresWithin reports whether the access token expires within d of now.
func (a Account) ExpiresWithin(d time.Duration) bool {
	return !a.Expires.After(time.Now().Add(d))
}

// LauncherTokens holds the per-mode first-party tokens minted by the
// launcher backend on top of the Minecraft identity.
type LauncherTokens struct {
	Production   string `json:"production,omitempty"`
	Experimental string `json:"experimental,omitempty"`
}

// Get returns the token stored for mode, or empty.
func (t LauncherTokens) Get(mode LauncherMode) string {
	if mode == ModeExperimental {
		return t.Experimental
	}
	return t.Production
}

// Set stores token in the slot for mode.
func (t *LauncherTokens) Set(mode LauncherMode, token string) {
	if mode == ModeExperimental {
		t.Experimental = token
		return
	}
	t.Production = token
}
