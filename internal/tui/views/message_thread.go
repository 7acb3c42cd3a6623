package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	name     string
	contact  string
	onSend   func(text string)
	onLeave  func()
	onClose  func()
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(composer.GetText())
			if text != "" && mt.onSend != nil {
				mt.onSend(text)
				composer.SetText("")
			}
		case tcell.KeyEscape:
			if mt.onLeave != nil {
				mt.onLeave()
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// Init implements Component.
func (mt *MessageThread) Init() {}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component. It discards any unsent draft.
func (mt *MessageThread) Stop() {
	mt.composer.SetText("")
	mt.messages.Clear()
	if mt.onClose != nil {
		mt.onClose()
	}
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Ask assistant"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetConversation sets the contact and display name shown in the title.
func (mt *MessageThread) SetConversation(contact, name string) {
	mt.contact = contact
	mt.name = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", cleanLine(name)))
}

// Contact returns the contact of the displayed conversation.
func (mt *MessageThread) Contact() string {
	return mt.contact
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnLeave sets the callback when Esc leaves the composer.
func (mt *MessageThread) SetOnLeave(fn func()) {
	mt.onLeave = fn
}

// SetOnClose sets the callback when the thread leaves the page stack.
func (mt *MessageThread) SetOnClose(fn func()) {
	mt.onClose = fn
}

// Update renders the conversation, oldest message first.
func (mt *MessageThread) Update(resp *rpc.GetConversationResponse) {
	mt.messages.Clear()
	if resp == nil {
		return
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s (%d msgs, %d in context) ",
		cleanLine(mt.name), resp.Conversation.MessageCount, resp.WindowTurns))

	for _, m := range resp.Messages {
		ts := formatTimestamp(m.TimestampUnixMs)
		line := fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s %s[-:-:-]\n%s\n\n",
			ui.ColorName(mt.senderColor(m)),
			cleanLine(mt.sender(m)), ts, statusMark(m.Status),
			cleanText(m.Body))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) sender(m rpc.Message) string {
	if m.Direction == "inbound" {
		return mt.name
	}
	switch m.Origin {
	case "assistant":
		return "Assistant"
	case "fallback":
		return "Assistant (fallback)"
	default:
		return "You"
	}
}

func (mt *MessageThread) senderColor(m rpc.Message) tcell.Color {
	if m.Direction == "inbound" {
		return mt.theme.InboundColor
	}
	switch m.Origin {
	case "assistant":
		return mt.theme.AssistantColor
	case "fallback":
		return mt.theme.FallbackColor
	default:
		return mt.theme.OperatorColor
	}
}

func statusMark(status string) string {
	switch status {
	case "pending":
		return "(pending)"
	case "sent":
		return "(sent)"
	case "delivered":
		return "(delivered)"
	case "read":
		return "(read)"
	case "failed":
		return "(failed)"
	default:
		return ""
	}
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
