// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for onboard.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// Network requests never touch state directly: they run as tea.Cmds and their
// results come back through Update as messages.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/onboard/internal/api"
	"github.com/kingrea/onboard/internal/approval"
	"github.com/kingrea/onboard/internal/config"
	"github.com/kingrea/onboard/internal/documents"
	"github.com/kingrea/onboard/internal/logbook"
	"github.com/kingrea/onboard/internal/notify"
	"github.com/kingrea/onboard/internal/routes"
	"github.com/kingrea/onboard/internal/schema"
	"github.com/kingrea/onboard/internal/wizard"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu      appState = iota // Schema list, approval review, exit
	stateRegister                      // Registration wizard
	stateSuccess                       // Confirmation after a 201
	stateApprovalEntry                 // Paste an approval token or link
	stateApproval                      // Approve/reject a registration
)

const (
	actionRegister = "register"
	actionApproval = "approval"
	actionExit     = "exit"
)

// Backend is the registration API as seen by the screens.
type Backend interface {
	wizard.Submitter
	approval.Decider
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBackend replaces the HTTP client built from config.
func WithBackend(b Backend) AppOption {
	return func(a *App) {
		if b != nil {
			a.backend = b
		}
	}
}

// WithLoader overrides the attachment loader.
func WithLoader(l *documents.Loader) AppOption {
	return func(a *App) {
		if l != nil {
			a.loader = l
		}
	}
}

// WithContext sets the context passed to network and file commands.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithStartTarget opens a route instead of the main menu.
func WithStartTarget(t routes.Target) AppOption {
	return func(a *App) {
		target := t
		a.start = &target
	}
}

// WithSchema sets the schema opened by the register route.
func WithSchema(id string) AppOption {
	return func(a *App) {
		if id = strings.TrimSpace(id); id != "" {
			a.schemaID = id
		}
	}
}

// WithAPIBaseURL overrides the configured API base URL for this session.
func WithAPIBaseURL(raw string) AppOption {
	return func(a *App) {
		a.apiOverride = strings.TrimSpace(raw)
	}
}

// WithNotificationDelay overrides how long notices stay visible.
func WithNotificationDelay(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.notices = notify.NewCenter(d)
		}
	}
}

type registerResultMsg struct {
	resp api.Response
	err  error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state    appState
	config   *config.Config
	logbook  *logbook.Logbook
	registry *schema.Registry
	backend  Backend
	loader   *documents.Loader
	notices  *notify.Center
	ctx      context.Context
	schemaID string
	start    *routes.Target

	apiOverride string

	// Screens
	wizard       *wizard.Wizard
	registerView *registerView
	approvalView *approvalView
	lastOutcome  wizard.Outcome
	pending      func() tea.Cmd

	// UI components
	mainMenu   list.Model
	tokenInput textinput.Model
	spinner    spinner.Model
	busy       bool
	initCmd    tea.Cmd

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title    string
	desc     string
	action   string
	schemaID string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates a new App instance
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		lb = nil
	}
	registry := schema.NewRegistry()
	schema.RegisterBuiltins(registry)
	if err := schema.RegisterDir(registry, cfg.SchemasDir()); err != nil {
		return nil, err
	}

	tokenInput := textinput.New()
	tokenInput.Prompt = "› "
	tokenInput.Placeholder = "approval token or link"
	tokenInput.Width = 60
	tokenInput.Cursor.SetMode(cursor.CursorStatic)

	app := &App{
		state:      stateMainMenu,
		config:     cfg,
		logbook:    lb,
		registry:   registry,
		ctx:        context.Background(),
		tokenInput: tokenInput,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.apiOverride != "" {
		if err := cfg.SetAPIBaseURL(app.apiOverride); err != nil {
			return nil, fmt.Errorf("tui: api url: %w", err)
		}
	}
	if app.backend == nil {
		app.backend = api.NewClient(cfg.APIBaseURL(),
			api.WithTimeout(cfg.APITimeout()),
			api.WithLogger(lb.Scoped("api")),
		)
	}
	if app.loader == nil {
		app.loader = documents.NewLoader()
	}
	if app.notices == nil {
		app.notices = notify.NewCenter(cfg.DismissAfter())
	}
	if app.schemaID == "" {
		app.schemaID = cfg.DefaultSchema()
	}

	mainMenu := list.New(app.buildMainMenu(), list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⬡ ONBOARD"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)
	app.mainMenu = mainMenu

	app.logInfo("Session opened · api %s · schemas %s", cfg.APIBaseURL(), strings.Join(registry.IDs(), ", "))
	if app.start != nil {
		app.initCmd = app.openTarget(*app.start)
	}
	return app, nil
}

// buildMainMenu lists one entry per registered schema plus the fixed actions.
func (a *App) buildMainMenu() []list.Item {
	items := []list.Item{}
	for _, id := range a.registry.IDs() {
		s, err := a.registry.Resolve(id)
		if err != nil {
			continue
		}
		desc := s.Description
		if desc == "" {
			desc = fmt.Sprintf("%d steps", s.StepCount())
		}
		items = append(items, menuItem{
			title:    "Register · " + s.DisplayName(),
			desc:     desc,
			action:   actionRegister,
			schemaID: s.ID,
		})
	}
	items = append(items,
		menuItem{title: "Review approval", desc: "Approve or reject a pending registration", action: actionApproval},
		menuItem{title: "Exit", desc: "Leave onboard", action: actionExit},
	)
	return items
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.initCmd
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.notices.Update(msg) {
		return a, nil
	}
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.registerView != nil {
			a.registerView.setWidth(max(20, msg.Width-6))
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case registerResultMsg:
		return a.handleRegisterResult(msg)

	case decisionResultMsg:
		return a.handleDecisionResult(msg)

	case attachmentLoadedMsg:
		return a.handleAttachment(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.state {
		case stateMainMenu:
			return a.updateMainMenu(msg)
		case stateRegister:
			return a.updateRegister(msg)
		case stateSuccess:
			switch msg.String() {
			case "enter", "esc", "q":
				return a.returnToMainMenu()
			}
			return a, nil
		case stateApprovalEntry:
			return a.updateApprovalEntry(msg)
		case stateApproval:
			return a.updateApproval(msg)
		}
	}

	if a.state == stateMainMenu {
		var cmd tea.Cmd
		a.mainMenu, cmd = a.mainMenu.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateMainMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "enter":
		return a.handleMainMenuSelection()
	}
	var cmd tea.Cmd
	a.mainMenu, cmd = a.mainMenu.Update(msg)
	return a, cmd
}

// handleMainMenuSelection processes menu item selection
func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.action {
	case actionRegister:
		return a, a.startRegistration(item.schemaID)
	case actionApproval:
		a.state = stateApprovalEntry
		a.tokenInput.SetValue("")
		return a, a.tokenInput.Focus()
	case actionExit:
		return a, tea.Quit
	}
	return a, nil
}

// openTarget switches to the screen a route addresses.
func (a *App) openTarget(t routes.Target) tea.Cmd {
	switch t.Screen {
	case routes.ScreenRegister:
		return a.startRegistration(a.schemaID)
	case routes.ScreenSuccess:
		a.state = stateSuccess
		return nil
	case routes.ScreenApproval:
		return a.openApproval(t.Token)
	}
	return nil
}

func (a *App) startRegistration(id string) tea.Cmd {
	s, err := a.registry.Resolve(id)
	if err != nil {
		a.logWarn("Unknown schema %q: %v", id, err)
		return a.notices.Post(notify.Error(fmt.Sprintf("Unknown form %q", id)))
	}
	w, err := wizard.New(s, wizard.WithLogger(a.logbook.Scoped("wizard")))
	if err != nil {
		a.logError("Schema %s is invalid: %v", s.ID, err)
		return a.notices.Post(notify.Error(err.Error()))
	}
	a.wizard = w
	a.registerView = newRegisterView(a.ctx, w, a.loader)
	if a.width > 0 {
		a.registerView.setWidth(max(20, a.width-6))
	}
	a.state = stateRegister
	a.logInfo("Registration started · %s", s.ID)
	return a.registerView.focusCurrent()
}

func (a *App) updateRegister(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := a.registerView
	if view == nil {
		return a.returnToMainMenu()
	}
	// The form is frozen while an attachment or a submission is in flight.
	if a.busy {
		return a, nil
	}
	switch msg.String() {
	case "esc":
		return a.returnToMainMenu()
	case "tab":
		return a, view.moveFocus(1)
	case "shift+tab":
		return a, view.moveFocus(-1)
	case "ctrl+n":
		return a, a.afterAttach(a.advanceStep)
	case "ctrl+p":
		return a, a.afterAttach(func() tea.Cmd {
			a.wizard.Retreat()
			return view.rebuild()
		})
	case "ctrl+s":
		return a, a.afterAttach(a.submitRegistration)
	}
	return a, view.update(msg)
}

// afterAttach runs next once every typed file path has been loaded into the
// form. With nothing loading next runs immediately.
func (a *App) afterAttach(next func() tea.Cmd) tea.Cmd {
	view := a.registerView
	attach := view.attachIfChanged()
	if !view.loadingAttachments() {
		return next()
	}
	a.pending = next
	a.busy = true
	return attach
}

func (a *App) advanceStep() tea.Cmd {
	view := a.registerView
	if a.wizard.Advance() {
		return view.rebuild()
	}
	if a.wizard.IsLastStep() {
		return a.notices.Post(notify.Notice{Kind: notify.KindInfo, Message: "This is the last step, press ctrl+s to submit"})
	}
	return view.focusFirstError()
}

// submitRegistration validates the form and sends it as a command. The
// wizard stays marked as submitting until the result message arrives.
func (a *App) submitRegistration() tea.Cmd {
	payload, err := a.wizard.Prepare()
	if err != nil {
		var verr *wizard.ValidationError
		switch {
		case errors.As(err, &verr) && verr.Step != a.wizard.Step():
			a.logWarn("Submit blocked: %v", err)
			return a.notices.Post(notify.Error(fmt.Sprintf("Step %d is incomplete, press ctrl+p to go back", verr.Step)))
		case errors.As(err, &verr):
			return tea.Batch(a.registerView.focusFirstError(), a.notices.Post(notify.Error(wizard.MsgRequired)))
		case errors.Is(err, wizard.ErrNotLastStep):
			return a.notices.Post(notify.Notice{Kind: notify.KindInfo, Message: "Complete every step before submitting"})
		default:
			return nil
		}
	}
	a.busy = true
	a.logInfo("Submitting %s registration", a.wizard.Schema().ID)
	backend := a.backend
	ctx := a.ctx
	send := func() tea.Msg {
		resp, err := backend.Register(ctx, payload)
		return registerResultMsg{resp: resp, err: err}
	}
	return tea.Batch(a.spinner.Tick, send)
}

func (a *App) handleRegisterResult(msg registerResultMsg) (tea.Model, tea.Cmd) {
	a.busy = false
	if a.wizard == nil {
		return a, nil
	}
	out := a.wizard.Complete(msg.resp, msg.err)
	a.lastOutcome = out
	if !out.Success {
		a.logWarn("Registration failed: %s", out.Message)
		return a, a.notices.Post(notify.Error(out.Message))
	}
	a.logInfo("Registration accepted: %s", out.Message)
	a.state = stateSuccess
	return a, a.notices.Post(notify.Success(out.Message))
}

// handleAttachment stores a loaded file. A step action waiting on attachments
// runs after the last one loads and is dropped if any of them fails.
func (a *App) handleAttachment(msg attachmentLoadedMsg) (tea.Model, tea.Cmd) {
	view := a.registerView
	if view == nil || !view.currentAttachment(msg) {
		return a, nil
	}
	var cmd tea.Cmd
	ok := false
	switch {
	case msg.err != nil:
		view.applyAttachment(msg)
		a.logWarn("Attach %s from %s: %v", msg.field, msg.path, msg.err)
		cmd = a.notices.Post(notify.Error(fmt.Sprintf("Could not read %s", msg.path)))
	case !view.applyAttachment(msg):
		a.logWarn("Attach %s rejected: %s (%s)", msg.field, msg.att.Filename, msg.att.ContentType)
	default:
		ok = true
		a.logInfo("Attached %s · %s (%d bytes)", msg.field, msg.att.Filename, msg.att.Size)
	}

	next := a.pending
	if next == nil || (ok && view.loadingAttachments()) {
		return a, cmd
	}
	a.pending = nil
	a.busy = false
	if !ok {
		return a, cmd
	}
	return a, next()
}

func (a *App) updateApprovalEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return a.returnToMainMenu()
	case "enter":
		token := tokenFromInput(a.tokenInput.Value())
		if token == "" {
			return a, a.notices.Post(notify.Error(approval.MsgInvalidToken))
		}
		return a, a.openApproval(token)
	}
	var cmd tea.Cmd
	a.tokenInput, cmd = a.tokenInput.Update(msg)
	return a, cmd
}

// tokenFromInput accepts a bare token or anything routes can resolve to an
// approval screen.
func tokenFromInput(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/") {
		return raw
	}
	target, err := routes.Resolve(raw)
	if err != nil || target.Screen != routes.ScreenApproval {
		return ""
	}
	return target.Token
}

func (a *App) openApproval(token string) tea.Cmd {
	gate := approval.New(token, approval.WithLogger(a.logbook.Scoped("approval")))
	a.approvalView = newApprovalView(gate)
	a.state = stateApproval
	a.tokenInput.Blur()
	a.logInfo("Approval opened")
	if n := gate.LoadClaim(); n != nil {
		return a.notices.Post(*n)
	}
	return nil
}

func (a *App) updateApproval(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := a.approvalView
	if view == nil {
		return a.returnToMainMenu()
	}
	switch msg.String() {
	case "esc":
		if a.busy {
			return a, nil
		}
		return a.returnToMainMenu()
	case "tab":
		return a, view.moveFocus(1)
	case "shift+tab":
		return a, view.moveFocus(-1)
	case "enter":
		notice, cmd := view.activate(a.sendDecision)
		if notice != nil {
			return a, a.notices.Post(*notice)
		}
		return a, cmd
	}
	return a, view.update(msg)
}

func (a *App) sendDecision(decision api.Decision) tea.Cmd {
	a.busy = true
	a.logInfo("Sending %s decision", decision.Action)
	backend := a.backend
	ctx := a.ctx
	token := a.approvalView.gate.Token()
	send := func() tea.Msg {
		resp, err := backend.Decide(ctx, token, decision)
		return decisionResultMsg{resp: resp, err: err}
	}
	return tea.Batch(a.spinner.Tick, send)
}

func (a *App) handleDecisionResult(msg decisionResultMsg) (tea.Model, tea.Cmd) {
	a.busy = false
	if a.approvalView == nil {
		return a, nil
	}
	n := a.approvalView.gate.Complete(msg.resp, msg.err)
	if n.Kind == notify.KindError {
		a.logWarn("Decision failed: %s", n.Message)
	} else {
		a.logInfo("Decision accepted: %s", n.Message)
	}
	return a, a.notices.Post(n)
}

func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.wizard = nil
	a.registerView = nil
	a.pending = nil
	a.approvalView = nil
	a.tokenInput.Blur()
	a.logInfo("Returned to main menu")
	a.mainMenu.SetItems(a.buildMainMenu())
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	mainWidth := max(20, width-4)
	if a.state == stateMainMenu {
		a.mainMenu.SetSize(max(20, mainWidth-4), max(10, a.height-14))
	}
	busy := ""
	if a.busy {
		busy = a.spinner.View()
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateRegister:
		if a.registerView != nil {
			status := ""
			switch {
			case a.pending != nil:
				status = "Loading attachment..."
			case a.busy:
				status = busy + " Submitting..."
			}
			content = a.registerView.View(status)
		}
	case stateSuccess:
		content = a.renderSuccess()
	case stateApprovalEntry:
		content = a.renderApprovalEntry()
	case stateApproval:
		if a.approvalView != nil {
			content = a.approvalView.View(busy)
		}
	}
	return a.renderStatusBoard(content, mainWidth)
}

func (a *App) renderSuccess() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3FB950")).
		Render("✓ Registration submitted")
	message := a.lastOutcome.Message
	if message == "" {
		message = "Your registration is awaiting approval."
	}
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("enter menu")
	return strings.Join([]string{title, "", message, "", hint}, "\n")
}

func (a *App) renderApprovalEntry() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Review approval")
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("enter open · esc menu")
	return strings.Join([]string{title, "", a.tokenInput.View(), "", hint}, "\n")
}

func (a *App) renderNotice() string {
	n, ok := a.notices.Current()
	if !ok {
		return ""
	}
	color := "#5B8DEF"
	prefix := "•"
	switch n.Kind {
	case notify.KindSuccess:
		color, prefix = "#3FB950", "✓"
	case notify.KindError:
		color, prefix = "#FF5F5F", "✗"
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(color)).
		Render(prefix + " " + n.Message)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(8)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
	return box
}

func (a *App) renderStatusBoard(mainContent string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ ONBOARD")
	mainBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(width).
		Render(mainContent)
	sections := []string{header}
	if notice := a.renderNotice(); notice != "" {
		sections = append(sections, notice)
	}
	sections = append(sections, mainBox)
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(fmt.Sprintf("api %s · ctrl+c quit", a.config.APIBaseURL()))
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}
