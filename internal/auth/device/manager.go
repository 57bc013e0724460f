// Package device owns the per-installation proof key and the device token
// minted against it.
package device

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/xbox"
	"github.com/deepslate-launcher/deepslate-core/pkg/cryptox"
)

// Registry persists the device registration. Implemented by the credential
// store; the narrow interface keeps this package from depending on it.
type Registry interface {
	DeviceRegistration() *domain.DeviceRegistration
	SetDeviceRegistration(*domain.DeviceRegistration) error
}

// TokenSource mints device tokens against the federation.
type TokenSource interface {
	RequestDeviceToken(ctx context.Context, deviceID string, key *ecdsa.PrivateKey, ref time.Time) (xbox.Token, time.Time, error)
}

// ErrNotRegistered reports that no device registration exists yet.
var ErrNotRegistered = errors.New("device: not registered")

// Manager owns the device identity lifecycle: generating the proof key,
// keeping its device token fresh and persisting both.
type Manager struct {
	registry Registry
	tokens   TokenSource
	log      *slog.Logger

	// mu serializes ensure so concurrent flows cannot both decide to
	// generate a key.
	mu sync.Mutex
}

func NewManager(registry Registry, tokens TokenSource, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{registry: registry, tokens: tokens, log: log}
}

// EnsureDeviceToken returns a registration with a valid device token,
// creating or renewing whatever is missing. force discards any existing
// key first. The returned timestamp is the reference for the next signed
// call, and reused reports whether an already-persisted key served the
// request.
func (m *Manager) EnsureDeviceToken(ctx context.Context, force bool) (*domain.DeviceRegistration, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg := m.registry.DeviceRegistration()
	if reg != nil && !force {
		if reg.Token.Valid(time.Now()) {
			return reg, time.Now(), true, nil
		}

		// Token expired: renew against the same key. Issuing a device
		// token does not require rotating the key.
		ref, err := m.requestToken(ctx, reg)
		if err != nil {
			return nil, time.Time{}, true, err
		}
		if err := m.registry.SetDeviceRegistration(reg); err != nil {
			return nil, time.Time{}, true, err
		}

		m.log.Debug("device token renewed", "device_id", reg.ID, "not_after", reg.Token.NotAfter)
		return reg, ref, true, nil
	}

	reg, err := generate()
	if err != nil {
		return nil, time.Time{}, false, err
	}

	ref, err := m.requestToken(ctx, reg)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if err := m.registry.SetDeviceRegistration(reg); err != nil {
		return nil, time.Time{}, false, err
	}

	m.log.Info("device registered", "device_id", reg.ID)
	return reg, ref, false, nil
}

// generate creates a fresh device identity: a random uppercased id and a
// new P-256 proof key.
func generate() (*domain.DeviceRegistration, error) {
	key, err := cryptox.GenerateES256Key()
	if err != nil {
		return nil, err
	}

	pemData, err := cryptox.EncodeES256Key(key)
	if err != nil {
		return nil, err
	}

	x, y, err := cryptox.PublicCoordinates(key)
	if err != nil {
		return nil, err
	}

	return &domain.DeviceRegistration{
		ID:            strings.ToUpper(uuid.NewString()),
		PrivateKeyPEM: pemData,
		X:             base64.RawURLEncoding.EncodeToString(x),
		Y:             base64.RawURLEncoding.EncodeToString(y),
	}, nil
}

// requestToken mints a device token for reg and stores it on the
// registration in place.
func (m *Manager) requestToken(ctx context.Context, reg *domain.DeviceRegistration) (time.Time, error) {
	key, err := cryptox.ParseES256Key(reg.PrivateKeyPEM)
	if err != nil {
		return time.Time{}, err
	}

	token, ref, err := m.tokens.RequestDeviceToken(ctx, reg.ID, key, time.Now())
	if err != nil {
		return time.Time{}, err
	}

	reg.Token = &domain.DeviceToken{
		IssueInstant:  token.IssueInstant,
		NotAfter:      token.NotAfter,
		Token:         token.Token,
		DisplayClaims: token.DisplayClaims,
	}
	return ref, nil
}

// Fingerprint derives the stable device identifier sent to the launcher
// backend: the hex SHA-256 of the uncompressed public point.
func (m *Manager) Fingerprint() (string, error) {
	reg := m.registry.DeviceRegistration()
	if reg == nil {
		return "", ErrNotRegistered
	}

	x, err := base64.RawURLEncoding.DecodeString(reg.X)
	if err != nil {
		return "", fmt.Errorf("device: failed to decode public x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(reg.Y)
	if err != nil {
		return "", fmt.Errorf("device: failed to decode public y: %w", err)
	}

	point := make([]byte, 0, 1+len(x)+len(y))
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)

	digest := sha256.Sum256(point)
	return hex.EncodeToString(digest[:]), nil
}
