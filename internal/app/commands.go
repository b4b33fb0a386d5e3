package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxlewis/claude-usage/internal/services"
)

const (
	historyPoints  = 60
	historyLogRows = 5
)

// tickCmd schedules the next per-second UI tick.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// subscribeCmd subscribes to service events and hands the channel back
// to the model.
func subscribeCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ch, _ := mgr.Subscribe()
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd waits for the next service event.
func waitForServiceEventCmd(ch chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// refreshCmd requests an immediate fetch for the active account.
func refreshCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		mgr.RefreshUsage()
		return StatusMsg{Text: "Refreshing..."}
	}
}

// loadHistoryCmd loads the recent utilization series for the chart and
// sparkline, plus the latest full readings for the detail lines.
func loadHistoryCmd(mgr *services.Manager, accountID string) tea.Cmd {
	return func() tea.Msg {
		series, err := mgr.UsageHistory(accountID, historyPoints)
		if err != nil {
			return HistoryLoadedMsg{AccountID: accountID, Error: err}
		}
		rows, err := mgr.SnapshotLog(accountID, historyLogRows)
		return HistoryLoadedMsg{AccountID: accountID, Series: series, Rows: rows, Error: err}
	}
}

// addAccountCmd creates a new account with the given label.
func addAccountCmd(mgr *services.Manager, label string) tea.Cmd {
	return func() tea.Msg {
		acc, err := mgr.Accounts().Add(label)
		return AccountAddedMsg{ID: acc.ID, Label: acc.Label, Error: err}
	}
}

// removeAccountCmd deletes an account and its credentials.
func removeAccountCmd(mgr *services.Manager, id string) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Accounts().Remove(id)
		return AccountRemovedMsg{ID: id, Error: err}
	}
}

// switchAccountCmd changes the active account.
func switchAccountCmd(mgr *services.Manager, id string) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Accounts().SetActive(id)
		return AccountSwitchedMsg{ID: id, Error: err}
	}
}

// saveSessionKeyCmd stores a session key for the active account. It goes
// through the manager so a poller idled by the missing key starts up.
func saveSessionKeyCmd(mgr *services.Manager, id, value string) tea.Cmd {
	return func() tea.Msg {
		mgr.SaveSessionKey(value, id)
		return CredentialSavedMsg{Field: "session key"}
	}
}

// saveOrgIDCmd stores an organization id for the active account.
func saveOrgIDCmd(mgr *services.Manager, id, value string) tea.Cmd {
	return func() tea.Msg {
		mgr.Accounts().SaveOrgID(value, id)
		return CredentialSavedMsg{Field: "organization id"}
	}
}

// clearStatusCmd clears the status line after a delay.
func clearStatusCmd(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
