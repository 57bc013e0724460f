package xbox

import (
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"

	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
)

const (
	// signaturePolicyVersion is the Xbox Live signing policy in effect.
	signaturePolicyVersion = 1

	// windowsEpochOffset is the number of seconds between the Windows
	// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
	windowsEpochOffset = 11644473600
)

// windowsTicks converts t to FILETIME ticks, 100ns intervals since
// 1601-01-01. The federation validates signatures against this clock.
func windowsTicks(t time.Time) uint64 {
	return uint64(t.Unix()+windowsEpochOffset) * 10_000_000
}

// signingBuffer assembles the exact byte sequence the signing policy
// covers: policy version, timestamp, method, path, authorization header and
// body, big-endian, each segment NUL-terminated.
func signingBuffer(ticks uint64, path, authorization string, body []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint32(signaturePolicyVersion)
	b.AddUint8(0)
	b.AddUint64(ticks)
	b.AddUint8(0)
	b.AddBytes([]byte("POST"))
	b.AddUint8(0)
	b.AddBytes([]byte(path))
	b.AddUint8(0)
	b.AddBytes([]byte(authorization))
	b.AddUint8(0)
	b.AddBytes(body)
	b.AddUint8(0)
	return b.BytesOrPanic()
}

// signRequest produces the Signature header value: policy version and
// timestamp followed by the raw ECDSA (r, s) over the signing buffer,
// base64 encoded.
func signRequest(key *ecdsa.PrivateKey, ref time.Time, path, authorization string, body []byte) (string, error) {
	ticks := windowsTicks(ref)

	r, s, err := cryptox.SignES256(key, signingBuffer(ticks, path, authorization, body))
	if err != nil {
		return "", fmt.Errorf("xbox: failed to sign request: %w", err)
	}

	var envelope cryptobyte.Builder
	envelope.AddUint32(signaturePolicyVersion)
	envelope.AddUint64(ticks)
	envelope.AddBytes(r)
	envelope.AddBytes(s)

	return base64.StdEncoding.EncodeToString(envelope.BytesOrPanic()), nil
}
