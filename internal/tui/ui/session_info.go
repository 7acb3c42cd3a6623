package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session       string
	Phone         string
	Status        string
	AutoReply     bool
	Conversations int
	Messages      int
	Unread        int
	Uptime        time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(si, si.render(data))
}

func (si *SessionInfo) render(data *SessionData) string {
	fgColor := ColorName(si.theme.FgColor)
	counterColor := ColorName(si.theme.CounterColor)

	phone := data.Phone
	if phone == "" {
		phone = "-"
	}
	autoReply := "off"
	if data.AutoReply {
		autoReply = "on"
	}

	rows := []struct{ label, value string }{
		{"Session:", data.Session},
		{"Phone:", phone},
		{"Status:", data.Status},
		{"Replies:", autoReply},
		{"Chats:", fmt.Sprintf("%d (%d unread)", data.Conversations, data.Unread)},
		{"Msgs:", fmt.Sprintf("%d", data.Messages)},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	var out string
	for i, r := range rows {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("[%s::b]%-9s[-:-:-][%s]%s[-]", fgColor, r.label, counterColor, tview.Escape(r.value))
	}
	return out
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
