package launcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/launcher"
)

type fakeIssuer struct {
	token           string
	err             error
	calls           int
	lastAccessToken string
	lastReq         launcher.IssueRequest
}

func (f *fakeIssuer) IssueToken(ctx context.Context, accessToken string, req launcher.IssueRequest) (string, error) {
	f.calls++
	f.lastAccessToken = accessToken
	f.lastReq = req
	return f.token, f.err
}

type fakeFingerprinter struct {
	fp  string
	err error
}

func (f *fakeFingerprinter) Fingerprint() (string, error) {
	return f.fp, f.err
}

// signedToken builds a real JWT so the unverified claim decode has
// something to chew on. The signing key is irrelevant to the refresher.
func signedToken(t *testing.T, username string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"username": username, "exp": exp.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testAccount(launcherToken string) domain.Account {
	acct := domain.Account{
		ID:           "11111111-2222-3333-4444-555555555555",
		Username:     "PlayerOne",
		AccessToken:  "minecraft-token",
		RefreshToken: "refresh-token",
		Expires:      time.Now().Add(time.Hour),
	}
	acct.LauncherTokens.Production = launcherToken
	return acct
}

func TestEnsureTokenSkipsFreshToken(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{token: "unused"}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

	acct := testAccount(signedToken(t, "PlayerOne", time.Now().Add(time.Hour)))

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, false)
	require.False(t, changed)
	require.Equal(t, acct, got)
	require.Equal(t, 0, issuer.calls)
}

func TestEnsureTokenRefreshesMissing(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{token: "new-launcher-token"}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

	acct := testAccount("")

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, false)
	require.True(t, changed)
	require.Equal(t, "new-launcher-token", got.LauncherTokens.Production)
	require.Equal(t, 1, issuer.calls)

	// The backend call carries the fingerprint, the bearer token and the
	// account id with dashes stripped.
	require.Equal(t, "minecraft-token", issuer.lastAccessToken)
	require.Equal(t, "fp-1", issuer.lastReq.Fingerprint)
	require.Equal(t, "PlayerOne", issuer.lastReq.Username)
	require.Equal(t, "11111111222233334444555555555555", issuer.lastReq.AccountID)
	require.Equal(t, domain.ModeProduction, issuer.lastReq.Mode)
}

func TestEnsureTokenRefreshesStale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"username mismatch", func(t *testing.T) string {
			return signedToken(t, "SomebodyElse", time.Now().Add(time.Hour))
		}},
		{"expired", func(t *testing.T) string {
			return signedToken(t, "PlayerOne", time.Now().Add(-time.Hour))
		}},
		{"not a jwt", func(t *testing.T) string {
			return "garbage"
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			issuer := &fakeIssuer{token: "new-launcher-token"}
			refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

			acct := testAccount(tt.token(t))

			got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, false)
			require.True(t, changed)
			require.Equal(t, "new-launcher-token", got.LauncherTokens.Production)
			require.Equal(t, 1, issuer.calls)
		})
	}
}

func TestEnsureTokenForce(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{token: "forced-token"}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

	acct := testAccount(signedToken(t, "PlayerOne", time.Now().Add(time.Hour)))

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, true)
	require.True(t, changed)
	require.Equal(t, "forced-token", got.LauncherTokens.Production)
	require.Equal(t, 1, issuer.calls)
}

func TestEnsureTokenSwallowsBackendFailure(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{err: errors.New("backend down")}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

	acct := testAccount("")

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, false)
	require.False(t, changed)
	require.Equal(t, acct, got)
}

func TestEnsureTokenSwallowsFingerprintFailure(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{token: "unused"}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{err: errors.New("not registered")}, nil)

	acct := testAccount("")

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeProduction, false)
	require.False(t, changed)
	require.Equal(t, acct, got)
	require.Equal(t, 0, issuer.calls)
}

func TestEnsureTokenModeSlots(t *testing.T) {
	t.Parallel()

	issuer := &fakeIssuer{token: "experimental-token"}
	refresher := launcher.NewRefresher(issuer, &fakeFingerprinter{fp: "fp-1"}, nil)

	acct := testAccount(signedToken(t, "PlayerOne", time.Now().Add(time.Hour)))
	production := acct.LauncherTokens.Production

	got, changed := refresher.EnsureToken(context.Background(), acct, domain.ModeExperimental, false)
	require.True(t, changed)
	require.Equal(t, "experimental-token", got.LauncherTokens.Experimental)
	require.Equal(t, production, got.LauncherTokens.Production)
	require.Equal(t, domain.ModeExperimental, issuer.lastReq.Mode)
}
