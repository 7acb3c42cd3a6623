package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatsView shows live conversation statistics and recent digests.
type StatsView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewStatsView creates a new statistics view.
func NewStatsView(theme *ui.Theme) *StatsView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Statistics ")
	tv.SetTitleColor(theme.TitleColor)

	return &StatsView{TextView: tv, theme: theme}
}

// Name implements Component.
func (sv *StatsView) Name() string { return "Stats" }

// Init implements Component.
func (sv *StatsView) Init() {}

// Start implements Component.
func (sv *StatsView) Start() {}

// Stop implements Component.
func (sv *StatsView) Stop() {}

// Hints implements Component.
func (sv *StatsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders the current statistics followed by the digest history.
func (sv *StatsView) Update(stats *rpc.GetStatsResponse, digests []rpc.Digest) {
	sv.Clear()
	if stats == nil {
		_, _ = fmt.Fprint(sv, "\n [::d]Loading...[-:-:-]")
		return
	}
	fg := ui.ColorName(sv.theme.FgColor)
	ct := ui.ColorName(sv.theme.CounterColor)
	st := stats.Stats

	rows := []struct{ label, value string }{
		{"Total Messages:", fmt.Sprintf("%d", st.TotalMessages)},
		{"Incoming:", fmt.Sprintf("%d", st.IncomingMessages)},
		{"Outgoing:", fmt.Sprintf("%d", st.OutgoingMessages)},
		{"Active Chats:", fmt.Sprintf("%d", st.ActiveConversations)},
		{"Unread:", fmt.Sprintf("%d", st.UnreadMessages)},
		{"Response Rate:", fmt.Sprintf("%d%%", st.ResponseRate)},
		{"Avg Response:", st.AverageResponse},
	}
	_, _ = fmt.Fprintf(sv, "\n [::b]Live[-:-:-] [::d]as of %s[-:-:-]\n\n",
		time.UnixMilli(stats.TakenAtUnixMs).Format("15:04:05"))
	for _, r := range rows {
		_, _ = fmt.Fprintf(sv, " [%s::b]%-16s[-:-:-][%s]%s[-]\n", fg, r.label, ct, r.value)
	}

	_, _ = fmt.Fprint(sv, "\n [::b]Digests[-:-:-]\n\n")
	if len(digests) == 0 {
		_, _ = fmt.Fprint(sv, " [::d]No digests recorded yet[-:-:-]\n")
		return
	}
	_, _ = fmt.Fprintf(sv, " [%s::b]%-17s %6s %6s %6s %6s %6s %s[-:-:-]\n", fg,
		"TAKEN", "TOTAL", "IN", "OUT", "ACTIVE", "RATE", "AVG")
	for _, d := range digests {
		_, _ = fmt.Fprintf(sv, " %-17s %6d %6d %6d %6d %5d%% %s\n",
			time.UnixMilli(d.TakenAtUnixMs).Format("2006-01-02 15:04"),
			d.Stats.TotalMessages, d.Stats.IncomingMessages, d.Stats.OutgoingMessages,
			d.Stats.ActiveConversations, d.Stats.ResponseRate, d.Stats.AverageResponse)
	}
}
