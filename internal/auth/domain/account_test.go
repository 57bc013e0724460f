package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

func TestAccountOffline(t *testing.T) {
	t.Parallel()

	require.True(t, domain.Account{AccessToken: domain.OfflineAccessToken}.Offline())
	require.False(t, domain.Account{AccessToken: "eyJ..."}.Offline())
	require.False(t, domain.Account{}.Offline())
}

func TestAccountRefreshable(t *testing.T) {
	t.Parallel()

	require.True(t, domain.Account{RefreshToken: "r"}.Refreshable())
	require.False(t, domain.Account{}.Refreshable())
}

func TestAccountExpiresWithin(t *testing.T) {
	t.Parallel()

	soon := domain.Account{Expires: time.Now().Add(time.Minute)}
	require.True(t, soon.ExpiresWithin(5*time.Minute))
	require.False(t, soon.ExpiresWithin(30*time.Second))

	past := domain.Account{Expires: time.Now().Add(-time.Hour)}
	require.True(t, past.ExpiresWithin(0))
}

func TestLauncherTokensSlots(t *testing.T) {
	t.Parallel()

	var tokens domain.LauncherTokens
	tokens.Set(domain.ModeProduction, "prod-jwt")
	tokens.Set(domain.ModeExperimental, "exp-jwt")

	require.Equal(t, "prod-jwt", tokens.Get(domain.ModeProduction))
	require.Equal(t, "exp-jwt", tokens.Get(domain.ModeExperimental))
	require.Equal(t, "prod-jwt", tokens.Production)
	require.Equal(t, "exp-jwt", tokens.Experimental)
}

func TestDeviceTokenValid(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var missing *domain.DeviceToken
	require.False(t, missing.Valid(now))
	require.False(t, (&domain.DeviceToken{}).Valid(now))
	require.False(t, (&domain.DeviceToken{Token: "t", NotAfter: now.Add(-time.Second)}).Valid(now))
	require.True(t, (&domain.DeviceToken{Token: "t", NotAfter: now.Add(time.Hour)}).Valid(now))
}

func TestDeviceRegistrationClone(t *testing.T) {
	t.Parallel()

	var missing *domain.DeviceRegistration
	require.Nil(t, missing.Clone())

	reg := &domain.DeviceRegistration{
		ID:            "ID",
		PrivateKeyPEM: "pem",
		Token: &domain.DeviceToken{
			Token:         "t",
			DisplayClaims: json.RawMessage(`{"xdi":{}}`),
		},
	}
	clone := reg.Clone()
	clone.Token.Token = "changed"
	clone.Token.DisplayClaims[0] = 'X'
	require.Equal(t, "t", reg.Token.Token)
	require.Equal(t, byte('{'), reg.Token.DisplayClaims[0])
}

func TestFlowErrorMessages(t *testing.T) {
	t.Parallel()

	t.Run("status and body", func(t *testing.T) {
		t.Parallel()
		err := &domain.FlowError{Step: domain.StepXstsAuthorize, Status: 401, Body: `{"XErr":2148916233}`}
		require.Equal(t, `auth: step xsts_authorize failed with status 401: {"XErr":2148916233}`, err.Error())
	})

	t.Run("wrapped error", func(t *testing.T) {
		t.Parallel()
		inner := errors.New("connection reset")
		err := &domain.FlowError{Step: domain.StepGetDeviceToken, Err: inner}
		require.Equal(t, "auth: step get_device_token failed: connection reset", err.Error())
		require.ErrorIs(t, err, inner)
	})

	t.Run("long bodies are truncated", func(t *testing.T) {
		t.Parallel()
		err := &domain.FlowError{Step: domain.StepEntitlements, Status: 500, Body: strings.Repeat("x", 2048)}
		msg := err.Error()
		require.True(t, strings.HasSuffix(msg, "..."))
		require.Less(t, len(msg), 600, fmt.Sprintf("message too long: %d", len(msg)))
	})
}
