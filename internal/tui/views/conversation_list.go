package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// SortMode orders the conversation list.
type SortMode int

const (
	SortRecent SortMode = iota
	SortUnread
	SortName
)

func (m SortMode) String() string {
	switch m {
	case SortUnread:
		return "unread"
	case SortName:
		return "name"
	default:
		return "recent"
	}
}

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []rpc.Conversation
	visible []rpc.Conversation
	filter  string
	sort    SortMode
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Init implements Component.
func (cl *ConversationList) Init() {}

// Start implements Component.
func (cl *ConversationList) Start() {}

// Stop implements Component.
func (cl *ConversationList) Stop() {}

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "s", Description: "Sort"},
		{Key: "t", Description: "Stats"},
		{Key: "p", Description: "Profile"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "0-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list with new data, keeping the selected
// conversation under the cursor when it is still visible.
func (cl *ConversationList) Update(convs []rpc.Conversation) {
	selected := cl.SelectedContact()
	cl.convs = convs
	cl.render()
	if selected == "" {
		return
	}
	for i, c := range cl.visible {
		if c.Contact == selected {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// CycleSort advances to the next sort mode and returns it.
func (cl *ConversationList) CycleSort() SortMode {
	cl.sort = (cl.sort + 1) % 3
	cl.render()
	return cl.sort
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" UNREAD", 0},
		{" MSGS", 0},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visibleConversations()
	for i, c := range cl.visible {
		row := i + 1
		color := cl.theme.FgColor
		unread := ""
		if c.UnreadCount > 0 {
			color = cl.theme.UnreadColor
			unread = fmt.Sprintf("%d", c.UnreadCount)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+cleanLine(displayName(c))).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+cleanLine(c.LastMessageSummary)).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(unread).SetTextColor(color).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", c.MessageCount)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(formatTimestamp(c.LastActivityUnixMs)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) by %s, filter: %s ", len(cl.visible), len(cl.convs), cl.sort, tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) by %s ", len(cl.convs), cl.sort))
	}
}

func (cl *ConversationList) visibleConversations() []rpc.Conversation {
	q := strings.ToLower(cl.filter)
	out := make([]rpc.Conversation, 0, len(cl.convs))
	for _, c := range cl.convs {
		if q != "" &&
			!strings.Contains(strings.ToLower(displayName(c)), q) &&
			!strings.Contains(strings.ToLower(c.LastMessageSummary), q) {
			continue
		}
		out = append(out, c)
	}
	switch cl.sort {
	case SortUnread:
		sort.SliceStable(out, func(i, j int) bool { return out[i].UnreadCount > out[j].UnreadCount })
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(displayName(out[i])) < strings.ToLower(displayName(out[j]))
		})
	}
	return out
}

// SelectedContact returns the contact of the currently selected row.
func (cl *ConversationList) SelectedContact() string {
	row, _ := cl.GetSelection()
	return cl.ContactByIndex(row)
}

// ContactByIndex returns the contact of the Nth visible conversation (1-based).
func (cl *ConversationList) ContactByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].Contact
}

func displayName(c rpc.Conversation) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Contact
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
