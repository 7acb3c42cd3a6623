package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/keys"
	"github.com/matheus3301/wppbot/internal/tui/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/matheus3301/wppbot/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageStats         = "stats"
	pageProfile       = "profile"
	pageAuth          = "auth"
	pageHelp          = "help"
)

// DefaultRefreshInterval matches the dashboard's polling period when the
// daemon config does not override it.
const DefaultRefreshInterval = 30 * time.Second

// App is the operator dashboard shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	client   *rpc.Client
	registry *keys.Registry
	session  string
	refresh  time.Duration

	layout      *tview.Flex
	sessionInfo *ui.SessionInfo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	flashBar    *ui.FlashBar
	prompt      *ui.Prompt
	promptShown bool
	onEdit      func(text string)

	convList    *views.ConversationList
	thread      *views.MessageThread
	details     *views.ConversationInfo
	statsView   *views.StatsView
	profileView *views.ProfileView
	authView    *views.AuthView
	helpView    *views.HelpView

	authRunning bool
	refreshNow  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the dashboard. refresh is the polling period for daemon
// state; zero selects DefaultRefreshInterval.
func NewApp(c *rpc.Client, sessionName string, refresh time.Duration) *App {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		pages:       ui.NewPages(),
		vm:          model.NewViewModel(c),
		client:      c,
		registry:    keys.NewRegistry(),
		session:     sessionName,
		refresh:     refresh,
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		convList:    views.NewConversationList(theme),
		thread:      views.NewMessageThread(theme),
		details:     views.NewConversationInfo(theme),
		statsView:   views.NewStatsView(theme),
		profileView: views.NewProfileView(theme),
		authView:    views.NewAuthView(theme),
		helpView:    views.NewHelpView(theme),
		refreshNow:  make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	r := a.registry
	rk := func(ch rune, fn func()) *keys.Action {
		return &keys.Action{Key: tcell.KeyRune, Rune: ch, Handler: fn}
	}

	r.AddGlobal("quit", rk('q', a.back))
	r.AddGlobal("help", rk('?', func() { a.push(pageHelp) }))
	r.AddGlobal("command", rk(':', func() { a.showPrompt(ui.PromptCommand) }))
	r.AddGlobal("escape", &keys.Action{Key: tcell.KeyEscape, Handler: a.back})

	r.AddView(pageConversations, "filter", rk('/', func() { a.showPrompt(ui.PromptFilter) }))
	r.AddView(pageConversations, "sort", rk('s', func() {
		a.vm.Flash.Info("Sorted by " + a.convList.CycleSort().String())
	}))
	r.AddView(pageConversations, "stats", rk('t', a.openStats))
	r.AddView(pageConversations, "profile", rk('p', a.openProfile))
	r.AddView(pageConversations, "quit", rk('q', a.Stop))
	r.AddView(pageConversations, "clear-filter", rk('0', a.convList.ClearFilter))
	for n := 1; n <= 9; n++ {
		n := n
		r.AddView(pageConversations, "jump-"+strconv.Itoa(n), rk(rune('0'+n), func() {
			if contact := a.convList.ContactByIndex(n); contact != "" {
				a.openConversation(contact)
			}
		}))
	}

	r.AddView(pageThread, "compose", rk('i', func() { a.app.SetFocus(a.thread.Composer()) }))
	r.AddView(pageThread, "reply", rk('r', a.askAssistant))
	r.AddView(pageThread, "details", rk('d', func() {
		a.details.Update(a.vm.Thread())
		a.push(pageDetails)
	}))

	r.AddView(pageProfile, "edit", rk('e', a.editPrompt))
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, _ int) {
		if contact := a.convList.ContactByIndex(row); contact != "" {
			a.openConversation(contact)
		}
	})

	a.thread.SetOnSend(func(text string) {
		a.async(func(ctx context.Context) error { return a.vm.SendText(ctx, text) })
	})
	a.thread.SetOnLeave(func() { a.app.SetFocus(a.thread.Messages()) })
	a.thread.SetOnClose(a.vm.CloseConversation)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		case ui.PromptEdit:
			if a.onEdit != nil {
				a.onEdit(text)
				a.onEdit = nil
			}
		}
	})
	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.convList.SetFilter(strings.TrimSpace(text))
		}
	})
	a.prompt.SetCompletions(CommandNames)
	a.prompt.SetOnCancel(func() {
		a.onEdit = nil
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []ui.Component) {
		names := make([]string, 0, len(stack))
		for _, c := range stack {
			names = append(names, c.Name())
		}
		a.crumbs.Update(names)
		if len(stack) > 0 {
			a.menu.Update(stack[len(stack)-1].Hints())
		}
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageConversations, a.convList)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageStats, a.statsView)
	a.pages.Add(pageProfile, a.profileView)
	a.pages.Add(pageAuth, a.authView)
	a.pages.Add(pageHelp, a.helpView)

	header := tview.NewFlex().
		AddItem(a.sessionInfo, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 26, 0, false)

	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.pages.Reset(pageConversations)
	a.app.SetRoot(a.layout, true).SetFocus(a.convList)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.Stop()
			return nil
		}
		// Text inputs own every key while focused.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusCurrent()
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		a.convList.ClearFilter()
		return
	}
	a.pages.Pop()
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	default:
		if c := a.pages.Component(a.pages.Current()); c != nil {
			a.app.SetFocus(c)
		}
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.attachPrompt()
}

func (a *App) editPrompt() {
	p := a.vm.Profile()
	if p == nil {
		return
	}
	a.onEdit = func(text string) {
		a.async(func(ctx context.Context) error { return a.vm.UpdatePrompt(ctx, text) })
	}
	a.prompt.Edit("System prompt", p.SystemPrompt)
	a.attachPrompt()
}

func (a *App) attachPrompt() {
	if !a.promptShown {
		a.layout.RemoveItem(a.pages)
		a.layout.RemoveItem(a.crumbs)
		a.layout.RemoveItem(a.flashBar)
		a.layout.AddItem(a.prompt, 3, 0, true).
			AddItem(a.pages, 0, 1, false).
			AddItem(a.crumbs, 1, 0, false).
			AddItem(a.flashBar, 1, 0, false)
		a.promptShown = true
	}
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if a.promptShown {
		a.layout.RemoveItem(a.prompt)
		a.promptShown = false
	}
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	if req, ok, err := ParameterUpdate(cmd); ok {
		if err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.async(func(ctx context.Context) error { return a.vm.UpdateParameters(ctx, req) })
		return
	}

	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.push(pageHelp)
	case "chat":
		a.openByQuery(cmd.Args)
	case "stats":
		a.openStats()
	case "profile":
		a.openProfile()
	case "prompt":
		if cmd.Args == "" {
			a.vm.Flash.Warn("Usage: :prompt <text>")
			return
		}
		a.async(func(ctx context.Context) error { return a.vm.UpdatePrompt(ctx, cmd.Args) })
	case "reply":
		a.askAssistant()
	case "clear":
		a.async(a.vm.ClearHistory)
	case "connect":
		a.async(a.vm.Connect)
	case "disconnect":
		a.async(a.vm.Disconnect)
	case "logout":
		a.async(a.vm.Logout)
	default:
		a.vm.Flash.Warn(fmt.Sprintf("Unknown command: %s", cmd.Name))
	}
}

func (a *App) openByQuery(query string) {
	if n, err := strconv.Atoi(query); err == nil {
		if contact := a.convList.ContactByIndex(n); contact != "" {
			a.openConversation(contact)
			return
		}
	}
	conv, ok := a.vm.FindConversation(query)
	if !ok {
		a.vm.Flash.Warn(fmt.Sprintf("No conversation matches %q", query))
		return
	}
	a.openConversation(conv.Contact)
}

func (a *App) openConversation(contact string) {
	name := contact
	if conv, ok := a.vm.Conversation(contact); ok && conv.DisplayName != "" {
		name = conv.DisplayName
	}
	a.pages.Reset(pageConversations)
	a.focusCurrent()
	go func() {
		if err := a.vm.OpenConversation(a.ctx, contact); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetConversation(contact, name)
			a.thread.Update(a.vm.Thread())
			a.convList.Update(a.vm.Conversations())
			a.push(pageThread)
		})
	}()
}

func (a *App) askAssistant() {
	if a.vm.ActiveContact() == "" {
		a.vm.Flash.Warn("Open a conversation first")
		return
	}
	a.vm.Flash.Info("Asking the assistant...")
	a.async(a.vm.Reply)
}

func (a *App) openStats() {
	a.statsView.Update(a.vm.Stats())
	a.push(pageStats)
	a.async(a.vm.LoadStats)
}

func (a *App) openProfile() {
	a.profileView.Update(a.vm.Profile())
	a.push(pageProfile)
	a.async(a.vm.LoadProfile)
}

// async runs fn off the UI goroutine, reporting failures as flash errors.
// Successful calls redraw through the view model's refresh signal.
func (a *App) async(fn func(ctx context.Context) error) {
	go func() {
		if err := fn(a.ctx); err != nil {
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) requestRefresh() {
	select {
	case a.refreshNow <- struct{}{}:
	default:
	}
}

// Run starts the dashboard and blocks until it exits.
func (a *App) Run() error {
	go a.renderLoop()
	go a.pollLoop()
	go a.watchEvents()
	a.requestRefresh()
	return a.app.Run()
}

// pollLoop reloads daemon state every refresh period and whenever a
// refresh is requested.
func (a *App) pollLoop() {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-a.refreshNow:
		case <-a.ctx.Done():
			return
		}
		a.load()
	}
}

func (a *App) load() {
	if err := a.vm.LoadSessionStatus(a.ctx); err != nil {
		a.vm.Flash.Err(fmt.Errorf("daemon unreachable: %w", err))
		return
	}
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.vm.Flash.Err(err)
	}
	if err := a.vm.ReloadActive(a.ctx); err != nil {
		a.vm.Flash.Err(err)
	}
	switch a.currentPage() {
	case pageStats:
		_ = a.vm.LoadStats(a.ctx)
	case pageProfile:
		_ = a.vm.LoadProfile(a.ctx)
	}
}

func (a *App) currentPage() string {
	page := make(chan string, 1)
	a.app.QueueUpdate(func() { page <- a.pages.Current() })
	select {
	case p := <-page:
		return p
	case <-a.ctx.Done():
		return ""
	}
}

// renderLoop redraws views when the view model changes and keeps the flash
// bar in sync with the current message.
func (a *App) renderLoop() {
	expiry := time.NewTicker(time.Second)
	defer expiry.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case msg := <-a.vm.Flash.Watch():
			m := msg
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&m) })
		case <-expiry.C:
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.vm.Flash.GetMessage()) })
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) render() {
	if ss := a.vm.SessionStatus(); ss != nil {
		a.sessionInfo.Update(a.sessionData(ss))
		a.syncAuthPage(ss.Status)
	}
	a.convList.Update(a.vm.Conversations())
	if a.vm.ActiveContact() != "" && a.thread.Contact() == a.vm.ActiveContact() {
		a.thread.Update(a.vm.Thread())
		if a.pages.Current() == pageDetails {
			a.details.Update(a.vm.Thread())
		}
	}
	a.statsView.Update(a.vm.Stats())
	if p := a.vm.Profile(); p != nil {
		a.profileView.Update(p)
	}
}

func (a *App) sessionData(ss *rpc.GetSessionStatusResponse) *ui.SessionData {
	unread := 0
	for _, c := range a.vm.Conversations() {
		unread += c.UnreadCount
	}
	return &ui.SessionData{
		Session:       a.sessionName(ss),
		Phone:         ss.PhoneNumber,
		Status:        ss.Status,
		AutoReply:     ss.AutoReply,
		Conversations: ss.ConversationCount,
		Messages:      ss.MessageCount,
		Unread:        unread,
		Uptime:        time.Duration(ss.UptimeMs) * time.Millisecond,
	}
}

// syncAuthPage shows the QR flow while the session needs pairing and leaves
// it once the daemon reports any other state.
func (a *App) syncAuthPage(state string) {
	onAuth := a.pages.Current() == pageAuth
	switch {
	case state == "AUTH_REQUIRED" && !onAuth:
		a.pages.Reset(pageConversations)
		a.push(pageAuth)
		if !a.authRunning {
			a.authRunning = true
			a.authView.ShowMessage("Starting authentication...")
			go a.runAuthFlow()
		}
	case state != "AUTH_REQUIRED" && onAuth:
		a.pages.Reset(pageConversations)
		a.focusCurrent()
	}
}

// runAuthFlow calls StartAuth on the daemon and streams QR codes to the auth view.
func (a *App) runAuthFlow() {
	defer a.app.QueueUpdate(func() { a.authRunning = false })

	stream, err := a.client.Session.StartAuth(a.ctx, &rpc.StartAuthRequest{})
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.authView.ShowMessage("Auth error: " + err.Error())
		})
		return
	}

	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			a.app.QueueUpdateDraw(func() {
				a.authView.ShowMessage("Auth stream error: " + err.Error())
			})
			return
		}

		a.app.QueueUpdateDraw(func() { a.authView.Show(evt) })
		if evt.Type == "authenticated" {
			a.vm.Flash.Info("Device linked")
			a.requestRefresh()
		}
		if evt.Type != "qr_code" {
			return
		}
	}
}

// watchEvents follows the daemon's event stream and refreshes on message
// and session activity, reconnecting after stream errors.
func (a *App) watchEvents() {
	for a.ctx.Err() == nil {
		stream, err := a.client.Inbox.WatchEvents(a.ctx, &rpc.WatchEventsRequest{})
		if err == nil {
			for {
				evt, err := stream.Recv()
				if err != nil {
					break
				}
				if notable(evt) {
					a.requestRefresh()
				}
			}
		}
		select {
		case <-time.After(a.refresh):
		case <-a.ctx.Done():
			return
		}
	}
}

func notable(evt *rpc.Event) bool {
	switch {
	case strings.HasPrefix(evt.Kind, bus.PrefixMessage),
		strings.HasPrefix(evt.Kind, bus.PrefixSession),
		evt.Kind == bus.KindStatsDigest:
		return true
	}
	return false
}

// Stop gracefully shuts down the dashboard.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) sessionName(ss *rpc.GetSessionStatusResponse) string {
	if ss.Session != "" {
		return ss.Session
	}
	return a.session
}
