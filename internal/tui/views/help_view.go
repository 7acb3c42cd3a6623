package views

import (
	"fmt"

	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Init implements Component.
func (hv *HelpView) Init() {}

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpEntry struct{ key, desc string }

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{"Global Keys", []helpEntry{
		{":", "Command mode"},
		{"/", "Filter mode"},
		{"?", "Help"},
		{"Esc", "Cancel / Go back"},
		{"q", "Quit / Back"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversation List", []helpEntry{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth conversation"},
		{"0", "Clear filter"},
		{"s", "Cycle sort (recent, unread, name)"},
		{"t", "Statistics and digests"},
		{"p", "Assistant profile"},
	}},
	{"Message Thread", []helpEntry{
		{"i", "Focus composer"},
		{"Enter", "Send message (in composer)"},
		{"r", "Ask the assistant to reply now"},
		{"d", "Conversation details"},
	}},
	{"Assistant Profile", []helpEntry{
		{"e", "Edit system prompt"},
	}},
	{"Commands (: mode)", []helpEntry{
		{":chat <name>", "Open conversation by name or number"},
		{":reply", "Ask the assistant to answer the open conversation"},
		{":clear", "Clear the assistant's history for the open conversation"},
		{":prompt <text>", "Replace the system prompt"},
		{":temp <0-2>", "Set sampling temperature"},
		{":tokens <n>", "Set reply token limit"},
		{":window <n>", "Set history window size"},
		{":model <name>", "Set generator model"},
		{":stats", "Statistics and digests"},
		{":profile", "Assistant profile"},
		{":connect / :disconnect", "Toggle the WhatsApp connection"},
		{":logout", "Unlink this device"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	for _, sec := range helpSections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, e := range sec.entries {
			_, _ = fmt.Fprintf(hv, "  [%s]%-24s[-:-:-] %s\n", kc, tview.Escape(e.key), e.desc)
		}
	}
}
