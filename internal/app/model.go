// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/clientdesk/internal/credential"
	"github.com/jeranaias/clientdesk/internal/session"
	"github.com/jeranaias/clientdesk/internal/transport"
	"github.com/jeranaias/clientdesk/internal/ui/components"
	"github.com/jeranaias/clientdesk/internal/ui/styles"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// RequestTimeout bounds each backend call issued from the UI.
const RequestTimeout = 30 * time.Second

// Sign-in view notices.
const (
	noticeIdle       = "You were signed out due to inactivity."
	noticeSignedOut  = "You have signed out."
	noticeExpired    = "Your session has expired. Please sign in again."
	noticeElsewhere  = "You were signed out from another window."
	noticeRestoreErr = "Could not restore your previous session."
)

// =============================================================================
// VIEW STATE
// =============================================================================

// View identifies the screen on display.
type View int

const (
	ViewLogin View = iota // Sign-in form
	ViewHome              // Signed-in home screen
)

// Login form fields.
const (
	fieldEmail = iota
	fieldPassword
)

// =============================================================================
// MESSAGES
// =============================================================================

// SignedOutMsg reports that the credential went away outside the timer: the
// backend answered 401 or another process removed the persisted slot.
type SignedOutMsg struct {
	Notice string
}

type loginResultMsg struct {
	user User
	err  error
}

type restoreResultMsg struct {
	user User
	err  error
}

type clientCreatedMsg struct {
	client Client
	err    error
}

// logoutRequestMsg asks the backend to revoke token after the timer has
// already torn the local session down.
type logoutRequestMsg struct {
	token string
}

type logoutDoneMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Options configures a Model.
type Options struct {
	API     *API
	Session session.Config

	// Theme defaults to styles.NewTheme().
	Theme *styles.Theme

	// TimerOptions are passed to every session.Timer the model creates.
	TimerOptions []session.Option
}

// Model is the root Bubble Tea model. It uses pointer receivers throughout;
// the sign-out callback and subscriptions close over it.
type Model struct {
	api     *API
	store   *credential.Store
	cfg     session.Config
	timerOp []session.Option
	theme   *styles.Theme

	sender session.Sender
	source *session.TeaSource

	// Per-session components, nil while signed out.
	timer      *session.Timer
	monitor    *session.Monitor
	unbind     func()
	lastSeq    uint64
	explicit   bool
	removeHook func()
	unsubStore func()

	view     View
	width    int
	height   int
	user     User
	notice   string
	formErr  string
	busy     bool
	quitting bool

	email    textinput.Model
	password textinput.Model
	focus    int

	clientName textinput.Model
	lastClient *Client
	retry      bool

	spinner   spinner.Model
	overlay   components.SessionTimeoutOverlay
	statusBar *components.StatusBar
}

// New creates the root model.
func New(opts Options) *Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Width = 36
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.Width = 36

	clientName := textinput.New()
	clientName.Placeholder = "Client name"
	clientName.Prompt = ""
	clientName.CharLimit = 120
	clientName.Width = 36

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Cyan)),
	)

	return &Model{
		api:        opts.API,
		store:      opts.API.Store(),
		cfg:        opts.Session,
		timerOp:    opts.TimerOptions,
		theme:      theme,
		source:     session.NewTeaSource(),
		view:       ViewLogin,
		email:      email,
		password:   password,
		clientName: clientName,
		spinner:    sp,
		overlay:    components.NewSessionTimeoutOverlay(),
		statusBar:  components.NewStatusBar(theme),
	}
}

// Attach connects the model to the running program. Messages raised off the
// event loop (timer snapshots, 401 teardown, external sign-out) are delivered
// through sender. Call it once, before Run.
func (m *Model) Attach(sender session.Sender) {
	m.sender = sender

	m.removeHook = m.api.Pipeline().OnUnauthorized(func() {
		m.send(SignedOutMsg{Notice: noticeExpired})
	})
	m.unsubStore = m.store.Subscribe(func(c credential.Change) {
		if c.External && !c.Present {
			m.send(SignedOutMsg{Notice: noticeElsewhere})
		}
	})
}

// Close tears down the active session and every subscription. It is safe to
// call more than once.
func (m *Model) Close() {
	m.endSession()
	if m.removeHook != nil {
		m.removeHook()
		m.removeHook = nil
	}
	if m.unsubStore != nil {
		m.unsubStore()
		m.unsubStore = nil
	}
}

// Source returns the activity source fed from the program's input.
func (m *Model) Source() *session.TeaSource {
	return m.source
}

// Timer returns the current session timer, or nil while signed out.
func (m *Model) Timer() *session.Timer {
	return m.timer
}

// CurrentView returns the screen on display.
func (m *Model) CurrentView() View {
	return m.view
}

// Notice returns the message shown above the sign-in form.
func (m *Model) Notice() string {
	return m.notice
}

// User returns the signed-in user.
func (m *Model) User() User {
	return m.user
}

func (m *Model) send(msg tea.Msg) {
	if m.sender == nil {
		return
	}
	// Program.Send blocks until the event loop receives the message, and
	// these may be raised from inside Update.
	go m.sender.Send(msg)
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func (m *Model) startSession(u User) {
	m.endSession()

	timer, err := session.NewTimer(m.cfg, m.signOut, m.timerOp...)
	if err != nil {
		// Only reachable with an invalid config, which was validated at load.
		logger.Error("session_timer_failed", "error", err)
		return
	}

	m.timer = timer
	m.lastSeq = 0
	m.explicit = false
	m.monitor = session.NewMonitor(m.cfg.Signals, m.source, session.WithSuppress(timer.InWarning))
	m.monitor.Attach(timer.NotifyActivity)
	if m.sender != nil {
		m.unbind = session.Bind(timer, m.sender)
	}
	timer.Start()
	m.applyState(timer.State())

	m.user = u
	m.statusBar.SetUser(u.DisplayName())
	m.view = ViewHome
	m.notice = ""
	m.formErr = ""
	m.retry = false
	m.password.SetValue("")
	m.clientName.SetValue("")
	m.clientName.Focus()

	logger.Info("signed_in", "user", u.ID)
}

// endSession releases the per-session components. Safe to call repeatedly.
func (m *Model) endSession() {
	if m.monitor != nil {
		m.monitor.Detach()
		m.monitor = nil
	}
	if m.unbind != nil {
		m.unbind()
		m.unbind = nil
	}
	if m.timer != nil {
		m.timer.Dispose()
		m.timer = nil
	}
	m.lastSeq = 0
	m.overlay.SetState(false, 0)
	m.statusBar.SetSession(session.State{})
}

// signOut is the timer's sign-out callback. It runs once per timer, on the
// clock goroutine for automatic logouts and inside Update for explicit ones.
func (m *Model) signOut(ctx context.Context) error {
	token, _ := m.store.Get()
	err := m.store.Clear()
	if token != "" {
		m.send(logoutRequestMsg{token: token})
	}
	return err
}

// applyState mirrors a snapshot of the current timer into the overlay and
// status bar. Snapshots at or below the last applied sequence are dropped.
func (m *Model) applyState(s session.State) {
	if s.Seq != 0 && s.Seq <= m.lastSeq {
		return
	}
	m.lastSeq = s.Seq
	m.overlay.ApplyState(s)
	m.statusBar.SetSession(s)
}

func (m *Model) toLogin(notice string) {
	m.endSession()
	m.user = User{}
	m.statusBar.SetUser("")
	m.statusBar.SetMessage("")
	m.view = ViewLogin
	m.notice = notice
	m.formErr = ""
	m.busy = false
	m.retry = false
	m.lastClient = nil
	m.password.SetValue("")
	m.focusField(fieldEmail)
}

func (m *Model) focusField(field int) {
	m.focus = field
	if field == fieldEmail {
		m.email.Focus()
		m.password.Blur()
		return
	}
	m.email.Blur()
	m.password.Focus()
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init attempts a silent re-authentication when a credential was restored
// from the persisted slot.
func (m *Model) Init() tea.Cmd {
	if _, ok := m.store.Get(); !ok {
		return textinput.Blink
	}
	m.busy = true
	m.statusBar.SetMessage("restoring session")
	return tea.Batch(m.spinner.Tick, m.restoreCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Every input message is offered to the monitor first.
	m.source.Dispatch(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.overlay.SetSize(msg.Width, msg.Height)
		m.statusBar.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.StateMsg:
		return m, m.handleState(msg)

	case components.SessionConfirmMsg:
		if m.timer != nil {
			m.timer.Confirm()
			m.applyState(m.timer.State())
		}
		return m, nil

	case components.SessionSignOutMsg:
		return m, m.signOutNow()

	case SignedOutMsg:
		// A credential present again means a newer sign-in superseded it.
		if _, ok := m.store.Get(); ok || m.view != ViewHome {
			return m, nil
		}
		logger.Info("signed_out", "notice", msg.Notice)
		m.toLogin(msg.Notice)
		return m, nil

	case logoutRequestMsg:
		return m, m.logoutCmd(msg.token)

	case logoutDoneMsg:
		if msg.err != nil {
			logger.Warn("logout_request_failed", "error", msg.err)
		}
		return m, nil

	case loginResultMsg:
		return m, m.handleLogin(msg)

	case restoreResultMsg:
		m.busy = false
		m.statusBar.SetMessage("")
		if msg.err != nil {
			logger.Info("session_restore_failed", "error", msg.err)
			if errors.Is(msg.err, transport.ErrSessionVoid) || errors.Is(msg.err, transport.ErrUnauthenticated) {
				m.toLogin(noticeExpired)
			} else {
				m.toLogin(noticeRestoreErr)
			}
			return m, nil
		}
		m.startSession(msg.user)
		return m, nil

	case clientCreatedMsg:
		return m, m.handleClientCreated(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, m.updateInputs(msg)
}

func (m *Model) handleState(msg session.StateMsg) tea.Cmd {
	if m.timer == nil || msg.Timer != m.timer {
		return nil
	}
	if msg.State.Seq <= m.lastSeq {
		return nil
	}
	m.applyState(msg.State)

	if msg.State.Phase == session.PhaseLoggedOut {
		notice := noticeIdle
		if m.explicit {
			notice = noticeSignedOut
		}
		m.toLogin(notice)
	}
	return nil
}

// signOutNow signs out on the user's request. A disabled timer never leaves
// Stopped, so the callback is invoked directly in that case.
func (m *Model) signOutNow() tea.Cmd {
	if m.timer == nil {
		return nil
	}
	m.explicit = true
	if m.timer.State().Phase == session.PhaseStopped {
		ctx, cancel := context.WithTimeout(context.Background(), session.DefaultSignOutTimeout)
		defer cancel()
		if err := m.signOut(ctx); err != nil {
			logger.Warn("session_signout_failed", "error", err)
		}
		m.toLogin(noticeSignedOut)
		return nil
	}

	m.timer.ForceLogout()
	m.toLogin(noticeSignedOut)
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		m.Close()
		return m, tea.Quit
	}

	// The warning surface owns the keyboard while it is up.
	if m.overlay.IsVisible() {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(msg)
		return m, cmd
	}

	if m.busy {
		return m, nil
	}

	switch m.view {
	case ViewLogin:
		switch msg.Type {
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			m.focusField(1 - m.focus)
			return m, nil
		case tea.KeyEnter:
			if m.focus == fieldEmail {
				m.focusField(fieldPassword)
				return m, nil
			}
			return m, m.submitLogin()
		}

	case ViewHome:
		switch msg.Type {
		case tea.KeyCtrlX:
			return m, m.signOutNow()
		case tea.KeyEnter:
			return m, m.submitClient()
		}
	}

	return m, m.updateInputs(msg)
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.view {
	case ViewLogin:
		if m.focus == fieldEmail {
			m.email, cmd = m.email.Update(msg)
		} else {
			m.password, cmd = m.password.Update(msg)
		}
	case ViewHome:
		m.clientName, cmd = m.clientName.Update(msg)
	}
	return cmd
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) submitLogin() tea.Cmd {
	email := m.email.Value()
	password := m.password.Value()
	if email == "" || password == "" {
		m.formErr = "Email and password are required."
		return nil
	}

	m.busy = true
	m.formErr = ""
	m.notice = ""
	m.statusBar.SetMessage("signing in")

	api := m.api
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		u, err := api.Login(ctx, email, password)
		return loginResultMsg{user: u, err: err}
	})
}

func (m *Model) handleLogin(msg loginResultMsg) tea.Cmd {
	m.busy = false
	m.statusBar.SetMessage("")
	if msg.err != nil {
		m.formErr = describeError(msg.err)
		m.retry = transport.IsTransient(msg.err)
		return nil
	}
	m.startSession(msg.user)
	return nil
}

func (m *Model) restoreCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		u, err := api.Me(ctx)
		return restoreResultMsg{user: u, err: err}
	}
}

func (m *Model) submitClient() tea.Cmd {
	name := m.clientName.Value()
	if name == "" {
		m.formErr = "Enter a client name."
		return nil
	}

	m.busy = true
	m.formErr = ""
	m.statusBar.SetMessage("creating client")

	api := m.api
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		c, err := api.CreateClient(ctx, name)
		return clientCreatedMsg{client: c, err: err}
	})
}

func (m *Model) handleClientCreated(msg clientCreatedMsg) tea.Cmd {
	m.busy = false
	m.statusBar.SetMessage("")
	if m.view != ViewHome {
		return nil
	}
	if msg.err != nil {
		if errors.Is(msg.err, transport.ErrUnauthenticated) || errors.Is(msg.err, transport.ErrSessionVoid) {
			// Teardown already ran; SignedOutMsg routes to sign-in.
			return nil
		}
		m.formErr = describeError(msg.err)
		m.retry = transport.IsTransient(msg.err)
		return nil
	}

	c := msg.client
	m.lastClient = &c
	m.retry = false
	m.clientName.SetValue("")
	return nil
}

func (m *Model) logoutCmd(token string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		return logoutDoneMsg{err: api.Logout(ctx, token)}
	}
}

// describeError renders a pipeline error for inline display.
func describeError(err error) string {
	var rejected *transport.RejectedError
	var terr *transport.TransportError
	switch {
	case errors.As(err, &rejected):
		if rejected.Status == 401 {
			return "Incorrect email or password."
		}
		if rejected.Message != "" {
			return rejected.Message
		}
		return rejected.Error()
	case errors.As(err, &terr):
		return "Could not reach the server."
	case errors.Is(err, transport.ErrUnauthenticated):
		return "Please sign in."
	default:
		return err.Error()
	}
}
