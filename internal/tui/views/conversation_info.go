package views

import (
	"fmt"

	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Init implements Component.
func (ci *ConversationInfo) Init() {}

// Start implements Component.
func (ci *ConversationInfo) Start() {}

// Stop implements Component.
func (ci *ConversationInfo) Stop() {}

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(resp *rpc.GetConversationResponse) {
	ci.Clear()
	if resp == nil {
		return
	}
	conv := resp.Conversation
	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	lastActive := formatTimestamp(conv.LastActivityUnixMs)
	if lastActive == "" {
		lastActive = "-"
	}

	var inbound, assistant, fallback, operator, failed int
	for _, m := range resp.Messages {
		switch {
		case m.Direction == "inbound":
			inbound++
		case m.Origin == "assistant":
			assistant++
		case m.Origin == "fallback":
			fallback++
		default:
			operator++
		}
		if m.Status == "failed" {
			failed++
		}
	}

	rows := []struct{ label, value string }{
		{"Name:", displayName(conv)},
		{"Contact:", conv.Contact},
		{"Messages:", fmt.Sprintf("%d", conv.MessageCount)},
		{"Unread:", fmt.Sprintf("%d", conv.UnreadCount)},
		{"Last Active:", lastActive},
		{"Last Message:", conv.LastMessageSummary},
		{"In Context:", fmt.Sprintf("%d turns", resp.WindowTurns)},
		{"Loaded:", fmt.Sprintf("%d in / %d assistant / %d fallback / %d operator", inbound, assistant, fallback, operator)},
		{"Failed:", fmt.Sprintf("%d", failed)},
	}
	_, _ = fmt.Fprint(ci, "\n")
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-][%s]%s[-]\n", fg, r.label, ct,
			cleanLine(r.value))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", cleanLine(displayName(conv))))
}
