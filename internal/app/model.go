// Package app implements the main Bubble Tea application.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxlewis/claude-usage/internal/config"
	"github.com/linuxlewis/claude-usage/internal/db"
	"github.com/linuxlewis/claude-usage/internal/models"
	"github.com/linuxlewis/claude-usage/internal/services"
	"github.com/linuxlewis/claude-usage/internal/services/usage"
	"github.com/linuxlewis/claude-usage/internal/ui/styles"
)

// inputMode identifies what the text input is currently collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputAddAccount
	inputRename
	inputSessionKey
	inputOrgID
)

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	NextAccount key.Binding
	PrevAccount key.Binding
	AddAccount  key.Binding
	Remove      key.Binding
	Rename      key.Binding
	SessionKey  key.Binding
	OrgID       key.Binding
	Refresh     key.Binding
	History     key.Binding
	ResetMode   key.Binding
	Help        key.Binding
	Quit        key.Binding
	Enter       key.Binding
	Escape      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextAccount: key.NewBinding(key.WithKeys("tab", "]"), key.WithHelp("tab", "next account")),
		PrevAccount: key.NewBinding(key.WithKeys("shift+tab", "["), key.WithHelp("shift+tab", "prev account")),
		AddAccount:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add account")),
		Remove:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete account")),
		Rename:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "rename account")),
		SessionKey:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "set session key")),
		OrgID:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "set org id")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		History:     key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "toggle history")),
		ResetMode:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle reset display")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Escape:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// Model is the main application model.
type Model struct {
	manager *services.Manager
	keymap  KeyMap

	// UI components
	spinner spinner.Model
	input   textinput.Model

	// Data
	accounts   []models.Account
	activeID   string
	usage      usage.State
	history    []float64
	historyLog []db.SnapshotRow

	// UI state
	mode         inputMode
	showHistory  bool
	showHelp     bool
	resetDisplay config.ResetDisplay
	statusText   string
	statusError  bool
	now          time.Time

	// Window dimensions
	width  int
	height int
	ready  bool

	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model.
func NewModel(mgr *services.Manager, resetDisplay config.ResetDisplay) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	input := textinput.New()
	input.CharLimit = 256
	input.Width = 48

	m := &Model{
		manager:      mgr,
		keymap:       DefaultKeyMap(),
		spinner:      s,
		input:        input,
		resetDisplay: resetDisplay,
		now:          time.Now(),
	}

	if mgr != nil {
		m.accounts = mgr.Accounts().Accounts()
		m.activeID = mgr.Accounts().ActiveAccountID()
		m.usage = mgr.Usage().State()
	}

	return m
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		tickCmd(),
	}
	if m.manager != nil {
		cmds = append(cmds, subscribeCmd(m.manager))
		if m.activeID != "" {
			cmds = append(cmds, loadHistoryCmd(m.manager, m.activeID))
		}
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.now = msg.Time
		return m, tickCmd()

	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		return m, waitForServiceEventCmd(m.eventChannel)

	case ServiceEventMsg:
		cmds := m.handleServiceEvent(msg.Event)
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
		return m, tea.Batch(cmds...)

	case HistoryLoadedMsg:
		if msg.Error == nil && msg.AccountID == m.activeID {
			m.history = msg.Series
			m.historyLog = msg.Rows
		}
		return m, nil

	case AccountAddedMsg:
		if msg.Error != nil {
			return m, statusCmd(fmt.Sprintf("Failed to add account: %v", msg.Error), true)
		}
		return m, statusCmd(fmt.Sprintf("Added %s", msg.Label), false)

	case AccountRemovedMsg:
		if msg.Error != nil {
			return m, statusCmd(fmt.Sprintf("Failed to delete account: %v", msg.Error), true)
		}
		return m, statusCmd("Account deleted", false)

	case AccountSwitchedMsg:
		if msg.Error != nil {
			return m, statusCmd(fmt.Sprintf("Failed to switch account: %v", msg.Error), true)
		}
		return m, nil

	case CredentialSavedMsg:
		return m, statusCmd(fmt.Sprintf("Saved %s", msg.Field), false)

	case StatusMsg:
		m.statusText = msg.Text
		m.statusError = msg.IsError
		return m, clearStatusCmd(4 * time.Second)

	case ClearStatusMsg:
		m.statusText = ""
		m.statusError = false
		return m, nil
	}

	return m, nil
}

// statusCmd emits a transient status line.
func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg {
		return StatusMsg{Text: text, IsError: isError}
	}
}

// handleServiceEvent folds manager events into model state.
func (m *Model) handleServiceEvent(event services.ServiceEvent) []tea.Cmd {
	var cmds []tea.Cmd

	switch event := event.(type) {
	case services.AccountsChangedEvent:
		m.accounts = event.Accounts
		if event.ActiveID != m.activeID {
			m.activeID = event.ActiveID
			m.history = nil
			m.historyLog = nil
			if m.manager != nil && m.activeID != "" {
				cmds = append(cmds, loadHistoryCmd(m.manager, m.activeID))
			}
		}

	case services.UsageUpdatedEvent:
		m.usage = event.State
		if m.manager != nil && event.AccountID == m.activeID {
			cmds = append(cmds, loadHistoryCmd(m.manager, m.activeID))
		}

	case services.AuthExpiredEvent:
		m.usage = event.State
		cmds = append(cmds, statusCmd("Session expired, set a new session key with s", true))

	case services.ErrorEvent:
		if event.Error != nil {
			cmds = append(cmds, statusCmd(fmt.Sprintf("%s: %v", event.Service, event.Error), true))
		}
	}

	return cmds
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.mode != inputNone {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Refresh):
		if m.manager != nil {
			return refreshCmd(m.manager)
		}

	case key.Matches(msg, m.keymap.History):
		m.showHistory = !m.showHistory
		if m.showHistory && m.manager != nil && m.activeID != "" {
			return loadHistoryCmd(m.manager, m.activeID)
		}

	case key.Matches(msg, m.keymap.ResetMode):
		if m.resetDisplay == config.ResetDisplayAbsolute {
			m.resetDisplay = config.ResetDisplayCountdown
		} else {
			m.resetDisplay = config.ResetDisplayAbsolute
		}

	case key.Matches(msg, m.keymap.NextAccount):
		return m.cycleAccount(1)

	case key.Matches(msg, m.keymap.PrevAccount):
		return m.cycleAccount(-1)

	case key.Matches(msg, m.keymap.AddAccount):
		return m.startInput(inputAddAccount, "Account label", "")

	case key.Matches(msg, m.keymap.Rename):
		if acc := m.activeAccount(); acc != nil {
			return m.startInput(inputRename, "New label", acc.Label)
		}

	case key.Matches(msg, m.keymap.SessionKey):
		if m.activeID != "" {
			return m.startInput(inputSessionKey, "Session key", "")
		}

	case key.Matches(msg, m.keymap.OrgID):
		if m.activeID != "" {
			return m.startInput(inputOrgID, "Organization id", "")
		}

	case key.Matches(msg, m.keymap.Remove):
		if m.manager != nil && m.activeID != "" {
			return removeAccountCmd(m.manager, m.activeID)
		}
	}

	return nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Escape):
		m.mode = inputNone
		m.input.Blur()
		return nil

	case key.Matches(msg, m.keymap.Enter):
		value := m.input.Value()
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		return m.submitInput(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) startInput(mode inputMode, prompt, initial string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt + ": "
	m.input.SetValue(initial)
	if mode == inputSessionKey {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
	return m.input.Focus()
}

func (m *Model) submitInput(mode inputMode, value string) tea.Cmd {
	if m.manager == nil || value == "" {
		return nil
	}

	switch mode {
	case inputAddAccount:
		return addAccountCmd(m.manager, value)
	case inputRename:
		if err := m.manager.Accounts().Rename(m.activeID, value); err != nil {
			return statusCmd(fmt.Sprintf("Failed to rename: %v", err), true)
		}
		return nil
	case inputSessionKey:
		return saveSessionKeyCmd(m.manager, m.activeID, value)
	case inputOrgID:
		return saveOrgIDCmd(m.manager, m.activeID, value)
	}
	return nil
}

// cycleAccount moves the active selection by offset within the list.
func (m *Model) cycleAccount(offset int) tea.Cmd {
	if m.manager == nil || len(m.accounts) < 2 {
		return nil
	}

	idx := 0
	for i, acc := range m.accounts {
		if acc.ID == m.activeID {
			idx = i
			break
		}
	}

	next := (idx + offset + len(m.accounts)) % len(m.accounts)
	return switchAccountCmd(m.manager, m.accounts[next].ID)
}

func (m *Model) activeAccount() *models.Account {
	for i := range m.accounts {
		if m.accounts[i].ID == m.activeID {
			return &m.accounts[i]
		}
	}
	return nil
}
