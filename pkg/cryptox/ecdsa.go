package cryptox

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// GenerateES256Key generates a new ECDSA P-256 private key.
// ES256 uses the P-256 curve (also known as secp256r1 or prime256v1).
func GenerateES256Key() (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}
	return privateKey, nil
}

// EncodeES256Key marshals the key to PKCS8 and wraps it in a PEM block,
// the form the credential store persists.
func EncodeES256Key(key *ecdsa.PrivateKey) (string, error) {
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}

	privateKeyPEM := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKeyBytes,
	}

	return string(pem.EncodeToMemory(privateKeyPEM)), nil
}

// ParseES256Key decodes a PEM-encoded PKCS8 private key and verifies it is
// an ECDSA key on the P-256 curve.
func ParseES256Key(pemData string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("cryptox: failed to decode PEM block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to parse PKCS8 key: %w", err)
	}

	privateKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptox: key is not an ECDSA key")
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, errors.New("cryptox: key is not on the P-256 curve")
	}

	return privateKey, nil
}

// PublicCoordinates returns the X and Y coordinates of the public key as
// fixed 32-byte big-endian values.
func PublicCoordinates(key *ecdsa.PrivateKey) (x, y []byte, err error) {
	if key == nil {
		return nil, nil, errors.New("cryptox: nil key")
	}
	x = make([]byte, 32)
	y = make([]byte, 32)
	key.PublicKey.X.FillBytes(x)
	key.PublicKey.Y.FillBytes(y)
	return x, y, nil
}

// SignES256 signs the SHA-256 digest of data and returns the raw signature
// as r and s, each padded to 32 bytes.
func SignES256(key *ecdsa.PrivateKey, data []byte) (r, s []byte, err error) {
	digest := sha256.Sum256(data)
	sigR, sigS, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("cryptox: failed to sign: %w", err)
	}
	r = make([]byte, 32)
	s = make([]byte, 32)
	sigR.FillBytes(r)
	sigS.FillBytes(s)
	return r, s, nil
}
