package domain

// LoginFlow carries the state minted by BeginLogin that FinishLogin needs
// to redeem the authorization code: the PKCE verifier whose challenge was
// embedded in the sign-in URL, and the SISU session that ties the eventual
// authorize call back to this attempt.
type LoginFlow struct {
	Verifier    string
	Challenge   string
	SessionID   string
	RedirectURI string
}
