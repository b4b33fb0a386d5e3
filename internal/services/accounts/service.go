// Package accounts manages the set of known accounts, the active account
// selection, and credential persistence through the vault.
package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/linuxlewis/claude-usage/internal/logger"
	"github.com/linuxlewis/claude-usage/internal/models"
	"github.com/linuxlewis/claude-usage/internal/vault"
)

// accountsFile is the JSON structure of the persisted metadata file. It
// carries the non-secret projection only; session keys stay in the vault.
type accountsFile struct {
	Version       int                      `json:"version"`
	Accounts      []models.AccountMetadata `json:"accounts"`
	ActiveAccount string                   `json:"activeAccount,omitempty"`
}

const fileVersion = 1

// Event represents an account service event.
type Event struct {
	Type    EventType
	Error   error
	Account *models.Account
}

// EventType defines the type of account event.
type EventType int

const (
	EventLoaded EventType = iota
	EventChanged
	EventAdded
	EventUpdated
	EventRemoved
	EventActiveChanged
	EventError
)

// Service manages accounts with vault-backed credentials, JSON metadata
// persistence, and file watching for external edits.
type Service struct {
	mu            sync.RWMutex
	accounts      []models.Account
	activeID      string
	filePath      string
	vault         *vault.Vault
	watcher       *fsnotify.Watcher
	events        chan Event
	stop          chan struct{}
	debounceTimer *time.Timer
}

// New creates the service, loads persisted accounts, runs the one-time
// legacy-credential migration, and starts watching the metadata file.
func New(filePath string, v *vault.Vault) (*Service, error) {
	if filePath == "" {
		return nil, errors.New("accounts file path is empty")
	}

	s := &Service{
		filePath: filePath,
		vault:    v,
		events:   make(chan Event, 100),
		stop:     make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("create accounts directory: %w", err)
	}

	if err := s.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load accounts: %w", err)
		}
		if err := s.persistLocked(s.activeID); err != nil {
			return nil, fmt.Errorf("create accounts file: %w", err)
		}
	}

	s.migrateLegacyCredentials()

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("start accounts watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded})
	return s, nil
}

// Events returns the event channel for subscribing to account changes.
func (s *Service) Events() <-chan Event {
	return s.events
}

// Accounts returns a copy of all accounts.
func (s *Service) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Count returns the number of accounts.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// ActiveAccountID returns the id of the active account, or "" when none.
func (s *Service) ActiveAccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveAccount returns a copy of the active account, or nil when none.
func (s *Service) ActiveAccount() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.accounts {
		if s.accounts[i].ID == s.activeID {
			acc := s.accounts[i]
			return &acc
		}
	}
	return nil
}

// Add creates a new account. The first account added becomes active.
func (s *Service) Add(label string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := models.Account{ID: uuid.NewString(), Label: label}
	s.accounts = append(s.accounts, account)

	active := s.activeID
	if len(s.accounts) == 1 {
		active = account.ID
	}

	if err := s.persistLocked(active); err != nil {
		s.accounts = s.accounts[:len(s.accounts)-1]
		return models.Account{}, fmt.Errorf("persist accounts: %w", err)
	}
	s.activeID = active

	s.sendEvent(Event{Type: EventAdded, Account: &account})
	return account, nil
}

// Remove deletes an account and cascades deletion of its vault secrets.
// When the active account is removed, the first remaining account (if any)
// becomes active.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	removed := s.accounts[idx]

	if err := s.vault.Delete(id, vault.FieldSessionKey); err != nil {
		logger.Warn("failed to delete session key", "account", id, "error", err)
	}
	if err := s.vault.Delete(id, vault.FieldOrgID); err != nil {
		logger.Warn("failed to delete org id", "account", id, "error", err)
	}

	s.accounts = append(s.accounts[:idx], s.accounts[idx+1:]...)

	active := s.activeID
	if active == id {
		active = ""
		if len(s.accounts) > 0 {
			active = s.accounts[0].ID
		}
	}

	if err := s.persistLocked(active); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}
	s.activeID = active

	s.sendEvent(Event{Type: EventRemoved, Account: &removed})
	return nil
}

// SetActive switches the active account. Unknown ids are a no-op. The new
// selection is persisted before the in-memory field flips, so a crash in
// between cannot leave volatile state ahead of persisted state.
func (s *Service) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfLocked(id) < 0 {
		return nil
	}
	if s.activeID == id {
		return nil
	}

	if err := s.persistLocked(id); err != nil {
		return fmt.Errorf("persist active account: %w", err)
	}
	s.activeID = id

	s.sendEvent(Event{Type: EventActiveChanged})
	return nil
}

// Rename changes an account's display label.
func (s *Service) Rename(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	s.accounts[idx].Label = label

	if err := s.persistLocked(s.activeID); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}

	acc := s.accounts[idx]
	s.sendEvent(Event{Type: EventUpdated, Account: &acc})
	return nil
}

// SaveSessionKey writes a session key through the vault and updates the
// in-memory copy. A vault persistence failure is logged and otherwise
// ignored; the in-memory value stands for the rest of the process.
func (s *Service) SaveSessionKey(value, id string) {
	if err := s.vault.Save(id, vault.FieldSessionKey, value); err != nil {
		logger.Warn("failed to persist session key", "account", id, "error", err)
	}

	s.mu.Lock()
	if idx := s.indexOfLocked(id); idx >= 0 {
		s.accounts[idx].SessionKey = value
	}
	s.mu.Unlock()
}

// SaveOrgID writes an org identifier through the vault, updates the
// in-memory copy, and refreshes the persisted metadata projection.
func (s *Service) SaveOrgID(value, id string) {
	if err := s.vault.Save(id, vault.FieldOrgID, value); err != nil {
		logger.Warn("failed to persist org id", "account", id, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return
	}
	s.accounts[idx].OrgID = value

	if err := s.persistLocked(s.activeID); err != nil {
		logger.Warn("failed to persist accounts", "error", err)
	}

	acc := s.accounts[idx]
	s.sendEvent(Event{Type: EventUpdated, Account: &acc})
}

// SessionKey returns the session key for an account, preferring the
// in-memory copy and falling back to the vault.
func (s *Service) SessionKey(id string) string {
	s.mu.RLock()
	idx := s.indexOfLocked(id)
	var cached string
	if idx >= 0 {
		cached = s.accounts[idx].SessionKey
	}
	s.mu.RUnlock()

	if cached != "" {
		return cached
	}
	value, _ := s.vault.Read(id, vault.FieldSessionKey)
	return value
}

// OrgID returns the org identifier for an account, preferring the
// in-memory copy and falling back to the vault.
func (s *Service) OrgID(id string) string {
	s.mu.RLock()
	idx := s.indexOfLocked(id)
	var cached string
	if idx >= 0 {
		cached = s.accounts[idx].OrgID
	}
	s.mu.RUnlock()

	if cached != "" {
		return cached
	}
	value, _ := s.vault.Read(id, vault.FieldOrgID)
	return value
}

// Close stops the watcher and closes the event channel.
func (s *Service) Close() error {
	close(s.stop)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// indexOfLocked requires s.mu held (read or write).
func (s *Service) indexOfLocked(id string) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the metadata projection with the given active id.
// Requires s.mu held for writing. The caller assigns s.activeID only after
// this returns nil.
func (s *Service) persistLocked(activeID string) error {
	file := accountsFile{
		Version:       fileVersion,
		ActiveAccount: activeID,
		Accounts:      make([]models.AccountMetadata, len(s.accounts)),
	}
	for i, acc := range s.accounts {
		file.Accounts[i] = acc.Metadata()
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0o600)
}

// load reads the metadata file and resolves credentials from the vault.
func (s *Service) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file accountsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse accounts file: %w", err)
	}

	accounts := make([]models.Account, 0, len(file.Accounts))
	for _, meta := range file.Accounts {
		acc := models.Account{ID: meta.ID, Label: meta.Label, OrgID: meta.OrgID}
		if key, ok := s.vault.Read(meta.ID, vault.FieldSessionKey); ok {
			acc.SessionKey = key
		}
		if acc.OrgID == "" {
			if org, ok := s.vault.Read(meta.ID, vault.FieldOrgID); ok {
				acc.OrgID = org
			}
		}
		accounts = append(accounts, acc)
	}

	active := file.ActiveAccount
	found := false
	for _, acc := range accounts {
		if acc.ID == active {
			found = true
			break
		}
	}
	if !found {
		active = ""
		if len(accounts) > 0 {
			active = accounts[0].ID
		}
	}

	s.mu.Lock()
	s.accounts = accounts
	s.activeID = active
	s.mu.Unlock()
	return nil
}

// migrateLegacyCredentials upgrades a pre-multi-account install: when no
// accounts exist but unscoped credentials are present in the vault, a
// single default account is synthesized, the secrets move to scoped keys,
// and the legacy keys are deleted. Idempotent — with any account present
// this does nothing.
func (s *Service) migrateLegacyCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.accounts) > 0 {
		return
	}

	legacyKey, hasKey := s.vault.Read("", vault.FieldSessionKey)
	legacyOrg, hasOrg := s.vault.Read("", vault.FieldOrgID)
	if !hasKey && !hasOrg {
		return
	}

	account := models.Account{
		ID:         uuid.NewString(),
		Label:      "Account 1",
		SessionKey: legacyKey,
		OrgID:      legacyOrg,
	}

	if hasKey {
		if err := s.vault.Save(account.ID, vault.FieldSessionKey, legacyKey); err != nil {
			logger.Warn("failed to migrate session key", "error", err)
		}
	}
	if hasOrg {
		if err := s.vault.Save(account.ID, vault.FieldOrgID, legacyOrg); err != nil {
			logger.Warn("failed to migrate org id", "error", err)
		}
	}

	s.accounts = []models.Account{account}
	if err := s.persistLocked(account.ID); err != nil {
		logger.Error("failed to persist migrated account", "error", err)
		return
	}
	s.activeID = account.ID

	if err := s.vault.Delete("", vault.FieldSessionKey); err != nil {
		logger.Warn("failed to delete legacy session key", "error", err)
	}
	if err := s.vault.Delete("", vault.FieldOrgID); err != nil {
		logger.Warn("failed to delete legacy org id", "error", err)
	}

	logger.Info("migrated legacy credentials", "account", account.ID)
}

// sendEvent sends an event without blocking; a full channel drops it.
func (s *Service) sendEvent(event Event) {
	select {
	case s.events <- event:
	default:
	}
}
