// Package store persists accounts and the device registration as a
// single JSON document on disk and keeps cached credentials fresh as
// they are handed out.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/pkg/retryx"
)

// ErrAccountNotFound is returned when an operation names an account id
// that is not in the store.
var ErrAccountNotFound = errors.New("store: account not found")

const (
	// refreshWindow is how close to expiry cached credentials may get
	// before an access triggers a refresh.
	refreshWindow = 5 * time.Minute

	// offlineLifetime puts offline account expiry roughly a century out.
	offlineLifetime = 876000 * time.Hour
)

// AccountRefresher rebuilds the credentials of a single account. It is
// implemented by the flow orchestrator.
type AccountRefresher interface {
	Refresh(ctx context.Context, acct domain.Account) (domain.Account, error)
}

// LauncherRefresher keeps an account's first party launcher token
// current. It never fails; a stale token is reported by returning the
// account unchanged.
type LauncherRefresher interface {
	EnsureToken(ctx context.Context, acct domain.Account, mode domain.LauncherMode, force bool) (domain.Account, bool)
}

// document is the on disk layout. Accounts and the device registration
// share one file so the whole credential state stays a single artifact
// users can copy between machines.
type document struct {
	Accounts []domain.Account           `json:"accounts"`
	Token    *domain.DeviceRegistration `json:"token"`
}

// Store is the credential store. Accounts and the device registration
// are guarded independently so a slow device operation never blocks
// account reads. File writes are serialized by saveMu; mutators release
// their state locks before saving.
type Store struct {
	path         string
	log          *slog.Logger
	launcherMode domain.LauncherMode

	accountsMu sync.RWMutex
	accounts   []domain.Account

	deviceMu sync.RWMutex
	device   *domain.DeviceRegistration

	saveMu sync.Mutex

	refresher         AccountRefresher
	launcherRefresher LauncherRefresher
	group             singleflight.Group
}

// Open loads the document at path. A missing or empty file yields an
// empty store; the file is only created on the first write.
func Open(path string, mode domain.LauncherMode, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{path: path, launcherMode: mode, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("store: failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to decode %s: %w", path, err)
	}
	s.accounts = doc.Accounts
	s.device = doc.Token
	return s, nil
}

// SetRefresher installs the account refresher. The store and the flow
// orchestrator reference each other, so the refresher is bound after
// construction.
func (s *Store) SetRefresher(r AccountRefresher) { s.refresher = r }

// SetLauncherRefresher installs the launcher token refresher.
func (s *Store) SetLauncherRefresher(r LauncherRefresher) { s.launcherRefresher = r }

// Accounts returns a copy of every stored account.
func (s *Store) Accounts() []domain.Account {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	out := make([]domain.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Account returns the account with the given id.
func (s *Store) Account(id string) (domain.Account, bool) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}

// AddOfflineAccount creates a local account that never touches the
// network. It carries the offline sentinel token and an expiry far
// enough out to never trigger a refresh.
func (s *Store) AddOfflineAccount(username string) (domain.Account, error) {
	acct := domain.Account{
		ID:          uuid.NewString(),
		Username:    username,
		AccessToken: domain.OfflineAccessToken,
		Expires:     time.Now().Add(offlineLifetime),
	}

	s.accountsMu.Lock()
	s.accounts = append(s.accounts, acct)
	s.accountsMu.Unlock()

	if err := s.save(); err != nil {
		return domain.Account{}, err
	}
	s.log.Info("offline account added", "account_id", acct.ID, "username", username)
	return acct, nil
}

// UpsertAccount replaces the stored account with the same id, or
// appends the account when it is new, and persists the document.
func (s *Store) UpsertAccount(acct domain.Account) error {
	s.accountsMu.Lock()
	replaced := false
	for i := range s.accounts {
		if s.accounts[i].ID == acct.ID {
			s.accounts[i] = acct
			replaced = true
			break
		}
	}
	if !replaced {
		s.accounts = append(s.accounts, acct)
	}
	s.accountsMu.Unlock()

	return s.save()
}

// RemoveAccount deletes the account with the given id. Removing an
// unknown id is a logged no-op.
func (s *Store) RemoveAccount(id string) error {
	s.accountsMu.Lock()
	found := false
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			found = true
			break
		}
	}
	s.accountsMu.Unlock()

	if !found {
		s.log.Warn("remove requested for unknown account", "account_id", id)
		return nil
	}
	return s.save()
}

// SetActiveAccount marks the given account active and clears the flag
// on every other account. The store is left untouched when the id is
// unknown.
func (s *Store) SetActiveAccount(id string) error {
	s.accountsMu.Lock()
	target := -1
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			target = i
			break
		}
	}
	if target < 0 {
		s.accountsMu.Unlock()
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	for i := range s.accounts {
		s.accounts[i].Active = i == target
	}
	s.accountsMu.Unlock()

	return s.save()
}

// ActiveAccount returns the active account with credentials refreshed
// when they are close to expiry. When no account carries the active
// flag the first stored account is promoted and returned as-is, so a
// document imported from another machine works without a network round
// trip.
func (s *Store) ActiveAccount(ctx context.Context) (domain.Account, bool, error) {
	acct, ok := s.activeSnapshot()
	if !ok {
		return s.promoteFirst()
	}

	fresh, err := s.refreshIfDue(ctx, acct, false)
	if err != nil {
		return domain.Account{}, false, err
	}
	return fresh, true, nil
}

// RefreshAccount refreshes one account's credentials on demand. Force
// ignores the expiry window.
func (s *Store) RefreshAccount(ctx context.Context, id string, force bool) (domain.Account, error) {
	acct, ok := s.Account(id)
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return s.refreshIfDue(ctx, acct, force)
}

// RefreshLauncherToken refreshes the first party launcher token for one
// account and mode, persisting the result when it changed.
func (s *Store) RefreshLauncherToken(ctx context.Context, id string, mode domain.LauncherMode, force bool) (domain.Account, error) {
	acct, ok := s.Account(id)
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if s.launcherRefresher == nil || acct.Offline() {
		return acct, nil
	}

	updated, changed := s.launcherRefresher.EnsureToken(ctx, acct, mode, force)
	if !changed {
		return acct, nil
	}
	if err := s.UpsertAccount(updated); err != nil {
		return domain.Account{}, err
	}
	return updated, nil
}

// DeviceRegistration returns a copy of the stored device registration,
// or nil when the device has never been registered.
func (s *Store) DeviceRegistration() *domain.DeviceRegistration {
	s.deviceMu.RLock()
	defer s.deviceMu.RUnlock()
	return s.device.Clone()
}

// SetDeviceRegistration stores the device registration and persists the
// document.
func (s *Store) SetDeviceRegistration(reg *domain.DeviceRegistration) error {
	s.deviceMu.Lock()
	s.device = reg.Clone()
	s.deviceMu.Unlock()

	return s.save()
}

func (s *Store) activeSnapshot() (domain.Account, bool) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	for _, a := range s.accounts {
		if a.Active {
			return a, true
		}
	}
	return domain.Account{}, false
}

func (s *Store) promoteFirst() (domain.Account, bool, error) {
	s.accountsMu.Lock()
	if len(s.accounts) == 0 {
		s.accountsMu.Unlock()
		return domain.Account{}, false, nil
	}
	for _, a := range s.accounts {
		if a.Active {
			// Another caller activated an account between our snapshot
			// and this lock.
			acct := a
			s.accountsMu.Unlock()
			return acct, true, nil
		}
	}
	for i := range s.accounts {
		s.accounts[i].Active = i == 0
	}
	acct := s.accounts[0]
	s.accountsMu.Unlock()

	if err := s.save(); err != nil {
		return domain.Account{}, false, err
	}
	s.log.Info("promoted first account to active", "account_id", acct.ID, "username", acct.Username)
	return acct, true, nil
}

// refreshIfDue refreshes the account's credentials when forced or when
// they expire within the refresh window, then ensures the launcher
// token. A transient refresh failure keeps the cached credentials so
// the caller can still play through an outage.
func (s *Store) refreshIfDue(ctx context.Context, acct domain.Account, force bool) (domain.Account, error) {
	if acct.Offline() {
		return acct, nil
	}

	if s.refresher != nil && acct.Refreshable() && (force || acct.ExpiresWithin(refreshWindow)) {
		fresh, err := s.refreshOne(ctx, acct)
		switch {
		case err == nil:
			acct = fresh
		case retryx.IsTransient(err):
			s.log.Warn("token refresh failed, keeping cached credentials",
				"account_id", acct.ID, "expires", acct.Expires, "error", err)
		default:
			return domain.Account{}, err
		}
	}

	if s.launcherRefresher != nil {
		updated, changed := s.launcherRefresher.EnsureToken(ctx, acct, s.launcherMode, false)
		if changed {
			acct = updated
			if err := s.UpsertAccount(acct); err != nil {
				return domain.Account{}, err
			}
		}
	}

	return acct, nil
}

// refreshOne collapses concurrent refreshes of the same account into a
// single network flow and persists the result.
func (s *Store) refreshOne(ctx context.Context, acct domain.Account) (domain.Account, error) {
	v, err, _ := s.group.Do(acct.ID, func() (any, error) {
		fresh, err := s.refresher.Refresh(ctx, acct)
		if err != nil {
			return nil, err
		}
		if err := s.UpsertAccount(fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return v.(domain.Account), nil
}

// save writes the whole document. The snapshot is taken under the read
// locks inside saveMu, so the last write to finish always reflects the
// latest state.
func (s *Store) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.accountsMu.RLock()
	accounts := make([]domain.Account, len(s.accounts))
	copy(accounts, s.accounts)
	s.accountsMu.RUnlock()

	s.deviceMu.RLock()
	device := s.device.Clone()
	s.deviceMu.RUnlock()

	data, err := json.MarshalIndent(document{Accounts: accounts, Token: device}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to encode document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store: failed to create state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("store: failed to write %s: %w", s.path, err)
	}
	return nil
}
