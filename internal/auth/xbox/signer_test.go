package xbox

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
)

func TestWindowsTicks(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(116444736000000000), windowsTicks(time.Unix(0, 0)))
	require.Equal(t, uint64((1600000000+11644473600)*10_000_000), windowsTicks(time.Unix(1600000000, 0)))
}

func TestSigningBufferLayout(t *testing.T) {
	t.Parallel()

	ticks := uint64(131620940373610000)
	buf := signingBuffer(ticks, "/device/authenticate", "XBL3.0 x=hash;token", []byte(`{"a":1}`))

	var want bytes.Buffer
	_ = binary.Write(&want, binary.BigEndian, uint32(1))
	want.WriteByte(0)
	_ = binary.Write(&want, binary.BigEndian, ticks)
	want.WriteByte(0)
	want.WriteString("POST")
	want.WriteByte(0)
	want.WriteString("/device/authenticate")
	want.WriteByte(0)
	want.WriteString("XBL3.0 x=hash;token")
	want.WriteByte(0)
	want.WriteString(`{"a":1}`)
	want.WriteByte(0)

	require.Equal(t, want.Bytes(), buf)

	// Same inputs always produce the same bytes.
	require.Equal(t, buf, signingBuffer(ticks, "/device/authenticate", "XBL3.0 x=hash;token", []byte(`{"a":1}`)))
}

func TestSignRequestVerifiable(t *testing.T) {
	t.Parallel()

	key, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	ref := time.Unix(1700000000, 0)
	body := []byte(`{"Properties":{}}`)
	header, err := signRequest(key, ref, "/xsts/authorize", "", body)
	require.NoError(t, err)

	envelope, err := base64.StdEncoding.DecodeString(header)
	require.NoError(t, err)
	require.Len(t, envelope, 4+8+64)

	require.Equal(t, uint32(1), binary.BigEndian.Uint32(envelope[:4]))
	ticks := binary.BigEndian.Uint64(envelope[4:12])
	require.Equal(t, windowsTicks(ref), ticks)

	digest := sha256.Sum256(signingBuffer(ticks, "/xsts/authorize", "", body))
	r := new(big.Int).SetBytes(envelope[12:44])
	s := new(big.Int).SetBytes(envelope[44:76])
	require.True(t, ecdsa.Verify(&key.PublicKey, digest[:], r, s))
}
