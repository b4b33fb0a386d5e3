package app

import (
	"time"

	"github.com/linuxlewis/claude-usage/internal/db"
	"github.com/linuxlewis/claude-usage/internal/services"
)

// TickMsg is sent every second to refresh relative timestamps.
type TickMsg struct {
	Time time.Time
}

// SubscriptionEventMsg carries the channel from the initial service
// subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// HistoryLoadedMsg contains the utilization series for the history chart
// and the latest recorded readings for the detail lines.
type HistoryLoadedMsg struct {
	AccountID string
	Series    []float64
	Rows      []db.SnapshotRow
	Error     error
}

// AccountAddedMsg contains the result of adding an account.
type AccountAddedMsg struct {
	ID    string
	Label string
	Error error
}

// AccountRemovedMsg contains the result of removing an account.
type AccountRemovedMsg struct {
	ID    string
	Error error
}

// AccountSwitchedMsg contains the result of switching the active account.
type AccountSwitchedMsg struct {
	ID    string
	Error error
}

// CredentialSavedMsg confirms a credential write for the active account.
type CredentialSavedMsg struct {
	Field string
}

// StatusMsg sets a transient status line in the footer.
type StatusMsg struct {
	Text    string
	IsError bool
}

// ClearStatusMsg clears the transient status line.
type ClearStatusMsg struct{}
