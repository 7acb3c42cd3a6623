package views

import (
	"fmt"

	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// ProfileView shows the assistant profile currently in effect.
type ProfileView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewProfileView creates a new assistant profile view.
func NewProfileView(theme *ui.Theme) *ProfileView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Assistant Profile ")
	tv.SetTitleColor(theme.TitleColor)

	return &ProfileView{TextView: tv, theme: theme}
}

// Name implements Component.
func (pv *ProfileView) Name() string { return "Profile" }

// Init implements Component.
func (pv *ProfileView) Init() {}

// Start implements Component.
func (pv *ProfileView) Start() {}

// Stop implements Component.
func (pv *ProfileView) Stop() {}

// Hints implements Component.
func (pv *ProfileView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "e", Description: "Edit prompt"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders the profile.
func (pv *ProfileView) Update(p *rpc.Profile) {
	pv.Clear()
	if p == nil {
		_, _ = fmt.Fprint(pv, "\n [::d]Loading...[-:-:-]")
		return
	}
	fg := ui.ColorName(pv.theme.FgColor)
	ct := ui.ColorName(pv.theme.CounterColor)

	rows := []struct{ label, value string }{
		{"Provider:", p.Provider},
		{"Model:", p.Model},
		{"Temperature:", fmt.Sprintf("%.2f", p.Temperature)},
		{"Max Tokens:", fmt.Sprintf("%d", p.MaxTokens)},
		{"Window Size:", fmt.Sprintf("%d turns", p.WindowSize)},
		{"Fallback:", p.FallbackMessage},
	}
	_, _ = fmt.Fprint(pv, "\n")
	for _, r := range rows {
		_, _ = fmt.Fprintf(pv, " [%s::b]%-13s[-:-:-][%s]%s[-]\n", fg, r.label, ct, tview.Escape(r.value))
	}
	_, _ = fmt.Fprintf(pv, "\n [%s::b]System Prompt[-:-:-]\n\n %s\n", fg, tview.Escape(p.SystemPrompt))
}
