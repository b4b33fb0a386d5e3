package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linuxlewis/claude-usage/internal/logger"
	"github.com/linuxlewis/claude-usage/internal/models"
)

// DefaultPollInterval is the tick spacing when the config does not set one.
const DefaultPollInterval = 5 * time.Minute

// CredentialSource supplies the active account and its credentials. The
// supervisor re-reads these on every tick so credential changes take
// effect without a restart.
type CredentialSource interface {
	ActiveAccountID() string
	SessionKey(accountID string) string
	OrgID(accountID string) string
	SaveSessionKey(value, accountID string)
}

// AuthStatus tracks whether the active account's session is believed valid.
type AuthStatus int

const (
	AuthUnknown AuthStatus = iota
	AuthConnected
	AuthExpired
)

// ErrorState classifies the most recent fetch failure, if any.
type ErrorState int

const (
	ErrorNone ErrorState = iota
	ErrorAuthExpired
	ErrorNetwork
)

// State is the supervisor's published view of the active account. Reads
// always see a complete state; partial updates are never visible.
type State struct {
	AccountID   string
	Snapshot    *models.UsageSnapshot
	LastUpdated time.Time
	ErrorState  ErrorState
	AuthStatus  AuthStatus
}

// EventType identifies usage lifecycle events.
type EventType int

const (
	EventSnapshotUpdated EventType = iota
	EventAuthExpired
	EventFetchError
)

// Event is emitted whenever the published state changes.
type Event struct {
	Type      EventType
	AccountID string
	State     State
	Err       error
}

// Service runs the polling loop for the active account. Starting for a
// new account always cancels the previous loop first, so at most one
// loop runs at any time.
type Service struct {
	creds    CredentialSource
	client   *Client
	interval time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	state      State

	events chan Event
}

// NewService creates a supervisor. The loop does not start until Start
// is called.
func NewService(creds CredentialSource, client *Client, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		creds:    creds,
		client:   client,
		interval: interval,
		events:   make(chan Event, 100),
	}
}

// Events returns the channel carrying state-change events.
func (s *Service) Events() <-chan Event {
	return s.events
}

// State returns a copy of the current published state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start cancels any running loop and begins polling for the current
// active account. When the account has no usable credentials the
// supervisor stays idle until the next Start.
func (s *Service) Start() {
	accountID := s.creds.ActiveAccountID()

	s.mu.Lock()
	s.cancelLocked()
	if accountID == "" || s.creds.SessionKey(accountID) == "" || s.creds.OrgID(accountID) == "" {
		s.mu.Unlock()
		logger.Debug("usage: no credentials for active account, polling idle")
		return
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	logger.Info("usage: polling started", "account", accountID, "interval", s.interval)
	go s.run(ctx, gen, accountID)
}

// Stop cancels the polling loop. In-flight fetches finish but their
// results are discarded.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.generation++
}

// FetchNow performs a one-shot fetch for the active account outside the
// ticker cadence. The periodic loop is unaffected.
func (s *Service) FetchNow() {
	accountID := s.creds.ActiveAccountID()
	if accountID == "" {
		return
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	go func() {
		sessionKey := s.creds.SessionKey(accountID)
		orgID := s.creds.OrgID(accountID)
		if sessionKey == "" || orgID == "" {
			return
		}
		s.fetch(context.Background(), gen, accountID, sessionKey, orgID)
	}()
}

// cancelLocked stops the current loop, if any. Requires mu held.
func (s *Service) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// superseded reports whether gen is no longer the live generation.
func (s *Service) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

func (s *Service) run(ctx context.Context, gen uint64, accountID string) {
	s.tick(ctx, gen, accountID)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.tick(ctx, gen, accountID) {
				return
			}
		}
	}
}

// tick performs one poll cycle. It reports false when the loop should
// exit because it has been superseded or the active account changed.
func (s *Service) tick(ctx context.Context, gen uint64, accountID string) bool {
	if s.superseded(gen) || s.creds.ActiveAccountID() != accountID {
		return false
	}

	// Re-read credentials each cycle; rotation or a rename may have
	// changed them since the loop started.
	sessionKey := s.creds.SessionKey(accountID)
	orgID := s.creds.OrgID(accountID)
	if sessionKey == "" || orgID == "" {
		logger.Debug("usage: credentials missing, skipping cycle", "account", accountID)
		return true
	}

	s.fetch(ctx, gen, accountID, sessionKey, orgID)
	return true
}

// fetch runs one round-trip and publishes the result, unless the loop
// was superseded while the request was in flight.
func (s *Service) fetch(ctx context.Context, gen uint64, accountID, sessionKey, orgID string) {
	snap, rotated, err := s.client.FetchUsage(ctx, sessionKey, orgID)

	if ctx.Err() != nil || s.superseded(gen) || s.creds.ActiveAccountID() != accountID {
		// A cancelled or stale fetch publishes nothing; the new loop
		// owns the state now.
		return
	}

	if err != nil {
		s.publishError(accountID, err)
		return
	}

	// Persist a rotated session key before publishing so subscribers
	// reacting to the event already see the fresh credential.
	if rotated != "" && rotated != sessionKey {
		logger.Info("usage: session key rotated", "account", accountID)
		s.creds.SaveSessionKey(rotated, accountID)
	}

	s.publishSnapshot(accountID, snap)
}

func (s *Service) publishSnapshot(accountID string, snap *models.UsageSnapshot) {
	s.mu.Lock()
	s.state = State{
		AccountID:   accountID,
		Snapshot:    snap,
		LastUpdated: time.Now(),
		ErrorState:  ErrorNone,
		AuthStatus:  AuthConnected,
	}
	state := s.state
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventSnapshotUpdated, AccountID: accountID, State: state})
}

func (s *Service) publishError(accountID string, err error) {
	var authErr *AuthError

	s.mu.Lock()
	state := s.state
	if state.AccountID != accountID {
		// The previous state belongs to another account. A failed first
		// fetch after a switch must not republish that account's
		// snapshot or auth status under the new id.
		state = State{AccountID: accountID}
	}
	if errors.As(err, &authErr) {
		state.ErrorState = ErrorAuthExpired
		state.AuthStatus = AuthExpired
	} else {
		// Transient failure: keep the last snapshot and auth status,
		// flag the error so the UI can show staleness.
		state.ErrorState = ErrorNetwork
	}
	s.state = state
	s.mu.Unlock()

	if state.ErrorState == ErrorAuthExpired {
		logger.Warn("usage: authentication expired", "account", accountID, "error", err)
		s.sendEvent(Event{Type: EventAuthExpired, AccountID: accountID, State: state, Err: err})
		return
	}
	logger.Warn("usage: fetch failed", "account", accountID, "error", err)
	s.sendEvent(Event{Type: EventFetchError, AccountID: accountID, State: state, Err: err})
}

// sendEvent delivers without blocking; a slow subscriber drops events
// rather than stalling the poll loop.
func (s *Service) sendEvent(ev Event) {
	select {
	case s.events <- ev:
	default:
		logger.Warn("usage: event channel full, dropping event", "type", ev.Type)
	}
}
