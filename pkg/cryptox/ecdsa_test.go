package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/pem"
	"math/big"
	"testing"

	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateES256Key(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateES256Key()
	require.NoError(t, err)
	require.NotNil(t, key)

	// Verify it's using the P-256 curve
	require.Equal(t, elliptic.P256(), key.Curve)
}

func TestEncodeParseRoundtrip(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	pemData, err := cryptox.EncodeES256Key(key)
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(pemData))
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	parsed, err := cryptox.ParseES256Key(pemData)
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(parsed.D))
	require.Equal(t, 0, key.PublicKey.X.Cmp(parsed.PublicKey.X))
	require.Equal(t, 0, key.PublicKey.Y.Cmp(parsed.PublicKey.Y))
}

func TestParseES256KeyInvalid(t *testing.T) {
	t.Parallel()

	t.Run("not pem", func(t *testing.T) {
		t.Parallel()

		_, err := cryptox.ParseES256Key("not a pem block")
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		_, err := cryptox.ParseES256Key("")
		require.Error(t, err)
	})
}

func TestPublicCoordinates(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	x, y, err := cryptox.PublicCoordinates(key)
	require.NoError(t, err)
	require.Len(t, x, 32)
	require.Len(t, y, 32)
	require.Equal(t, 0, key.PublicKey.X.Cmp(new(big.Int).SetBytes(x)))
	require.Equal(t, 0, key.PublicKey.Y.Cmp(new(big.Int).SetBytes(y)))
}

func TestSignES256(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	data := []byte("payload to sign")
	r, s, err := cryptox.SignES256(key, data)
	require.NoError(t, err)
	require.Len(t, r, 32)
	require.Len(t, s, 32)

	digest := sha256.Sum256(data)
	valid := ecdsa.Verify(&key.PublicKey, digest[:], new(big.Int).SetBytes(r), new(big.Int).SetBytes(s))
	require.True(t, valid)
}

func TestRandomHex(t *testing.T) {
	t.Parallel()

	value, err := cryptox.RandomHex(cryptox.VerifierSize)
	require.NoError(t, err)
	require.Len(t, value, cryptox.VerifierSize*2)

	other, err := cryptox.RandomHex(cryptox.VerifierSize)
	require.NoError(t, err)
	require.NotEqual(t, value, other)

	_, err = cryptox.RandomHex(0)
	require.Error(t, err)
}
