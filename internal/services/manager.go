// Package services provides service orchestration for the TUI.
package services

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/linuxlewis/claude-usage/internal/config"
	"github.com/linuxlewis/claude-usage/internal/db"
	"github.com/linuxlewis/claude-usage/internal/logger"
	"github.com/linuxlewis/claude-usage/internal/models"
	"github.com/linuxlewis/claude-usage/internal/services/accounts"
	"github.com/linuxlewis/claude-usage/internal/services/usage"
	"github.com/linuxlewis/claude-usage/internal/vault"
)

// alertThreshold is the highest-utilization percentage that triggers a
// desktop notification when crossed upward.
const alertThreshold = 90.0

// historyRetention bounds how far back the snapshot history goes.
const historyRetention = 30 * 24 * time.Hour

type (
	// AccountsChangedEvent is emitted when the accounts list or the
	// active selection changes.
	AccountsChangedEvent struct {
		Accounts []models.Account
		ActiveID string
	}

	// UsageUpdatedEvent is emitted when a fresh snapshot is published
	// for the active account.
	UsageUpdatedEvent struct {
		AccountID string
		State     usage.State
	}

	// AuthExpiredEvent is emitted when the active account's session was
	// rejected and needs new credentials.
	AuthExpiredEvent struct {
		AccountID string
		State     usage.State
		Error     error
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (AccountsChangedEvent) isServiceEvent() {}
func (UsageUpdatedEvent) isServiceEvent()    {}
func (AuthExpiredEvent) isServiceEvent()     {}
func (ErrorEvent) isServiceEvent()           {}

// Manager orchestrates services and event routing.
type Manager struct {
	mu              sync.RWMutex
	accounts        *accounts.Service
	usage           *usage.Service
	database        *db.DB
	stopChan        chan struct{}
	subscribers     []chan<- ServiceEvent
	previousHighest map[string]float64
}

// NewManager creates a new service manager and starts polling for the
// active account, if one is configured.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		stopChan:        make(chan struct{}),
		previousHighest: make(map[string]float64),
	}

	secrets, err := vault.NewAgeFileStore(cfg.SecretsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}
	meta, err := vault.NewPlainFileStore(cfg.MetadataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	credVault := vault.New(secrets, meta)

	m.accounts, err = accounts.New(cfg.AccountsPath, credVault)
	if err != nil {
		return nil, err
	}
	logger.Info("accounts loaded", "count", m.accounts.Count())

	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Debug("usage history store ready", "path", m.database.Path())

	m.usage = usage.NewService(m.accounts, usage.NewClient(nil), cfg.PollInterval)

	m.PruneHistory(historyRetention)

	go m.routeEvents()

	m.usage.Start()

	return m, nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.accounts.Events():
			m.handleAccountEvent(event)

		case event := <-m.usage.Events():
			m.handleUsageEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleAccountEvent converts and broadcasts account events, restarting
// the polling loop whenever the active account or its credentials may
// have changed.
func (m *Manager) handleAccountEvent(event accounts.Event) {
	if event.Type == accounts.EventRemoved && event.Account != nil {
		delete(m.previousHighest, event.Account.ID)
		if m.database != nil {
			if err := m.database.DeleteAccount(event.Account.ID); err != nil {
				logger.Warn("failed to delete usage history", "account", event.Account.ID, "error", err)
			}
		}
	}

	switch event.Type {
	case accounts.EventLoaded, accounts.EventChanged, accounts.EventAdded,
		accounts.EventUpdated, accounts.EventRemoved, accounts.EventActiveChanged:

		m.broadcast(AccountsChangedEvent{
			Accounts: m.accounts.Accounts(),
			ActiveID: m.accounts.ActiveAccountID(),
		})

		m.usage.Start()

	case accounts.EventError:
		m.broadcast(ErrorEvent{
			Service: "accounts",
			Error:   event.Error,
		})
	}
}

func (m *Manager) handleUsageEvent(event usage.Event) {
	switch event.Type {
	case usage.EventSnapshotUpdated:
		m.broadcast(UsageUpdatedEvent{
			AccountID: event.AccountID,
			State:     event.State,
		})

		if event.State.Snapshot != nil {
			m.recordHistory(event.AccountID, event.State)
			m.checkNotifications(event.AccountID, event.State.Snapshot)
		}

	case usage.EventAuthExpired:
		m.broadcast(AuthExpiredEvent{
			AccountID: event.AccountID,
			State:     event.State,
			Error:     event.Err,
		})

	case usage.EventFetchError:
		m.broadcast(ErrorEvent{
			Service: "usage",
			Error:   event.Err,
		})
	}
}

// recordHistory persists the snapshot for the history chart.
func (m *Manager) recordHistory(accountID string, state usage.State) {
	if m.database == nil {
		return
	}
	if err := m.database.InsertSnapshot(accountID, state.Snapshot, state.LastUpdated); err != nil {
		logger.Warn("failed to record usage history", "account", accountID, "error", err)
	}
}

// checkNotifications fires a desktop notification when the highest
// utilization crosses the alert threshold upward.
func (m *Manager) checkNotifications(accountID string, snap *models.UsageSnapshot) {
	newHighest := models.HighestUtilization(snap)

	oldHighest, exists := m.previousHighest[accountID]
	m.previousHighest[accountID] = newHighest

	if !exists {
		return
	}

	if newHighest >= alertThreshold && oldHighest < alertThreshold {
		label := accountID
		for _, acc := range m.accounts.Accounts() {
			if acc.ID == accountID {
				label = acc.Label
				break
			}
		}
		title := fmt.Sprintf("Usage Alert: %s", label)
		body := fmt.Sprintf("Highest utilization reached %.0f%%", newHighest)
		_ = beeep.Notify(title, body, "")
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// RefreshUsage forces a one-shot fetch for the active account.
func (m *Manager) RefreshUsage() {
	m.usage.FetchNow()
}

// SaveSessionKey stores a session key for an account and restarts the
// poller. The restart matters when the poller was idle because the
// account had no key yet; a running loop just begins a fresh cycle.
func (m *Manager) SaveSessionKey(value, accountID string) {
	m.accounts.SaveSessionKey(value, accountID)
	m.usage.Start()
}

// UsageHistory returns the recent highest-utilization series for an
// account, oldest first, for charting.
func (m *Manager) UsageHistory(accountID string, limit int) ([]float64, error) {
	if m.database == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return m.database.RecentHighest(accountID, limit)
}

// SnapshotLog returns the most recent recorded readings for an account,
// newest first, for the history detail lines.
func (m *Manager) SnapshotLog(accountID string, limit int) ([]db.SnapshotRow, error) {
	if m.database == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return m.database.Snapshots(accountID, limit)
}

// Accounts returns the accounts service.
func (m *Manager) Accounts() *accounts.Service {
	return m.accounts
}

// Usage returns the usage polling service.
func (m *Manager) Usage() *usage.Service {
	return m.usage
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// PruneHistory removes snapshots older than the retention window.
func (m *Manager) PruneHistory(retention time.Duration) {
	if m.database == nil {
		return
	}
	if n, err := m.database.Prune(retention); err != nil {
		logger.Warn("failed to prune usage history", "error", err)
	} else if n > 0 {
		logger.Debug("pruned usage history", "rows", n)
	}
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	close(m.stopChan)

	m.usage.Stop()

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	var errs []error

	if err := m.accounts.Close(); err != nil {
		errs = append(errs, err)
	}

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
