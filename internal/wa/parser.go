package wa

import (
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/conversation"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	IsGroup     bool
	Timestamp   int64
}

// ParsedReceipt is a normalized delivery or read receipt.
type ParsedReceipt struct {
	ChatJID    string
	MessageIDs []string
	Status     conversation.Status
	FromMe     bool
	Timestamp  int64
}

// ParseLiveMessage normalizes a live whatsmeow message event. Media with a
// caption carries the caption as its body.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	kind, body := classify(evt.Message)
	return &ParsedMessage{
		ChatJID:     evt.Info.Chat.ToNonAD().String(),
		MsgID:       evt.Info.ID,
		SenderJID:   evt.Info.Sender.ToNonAD().String(),
		SenderName:  evt.Info.PushName,
		Body:        strings.TrimSpace(body),
		MessageType: kind,
		FromMe:      evt.Info.IsFromMe,
		IsGroup:     evt.Info.IsGroup || evt.Info.Chat.Server == types.GroupServer,
		Timestamp:   evt.Info.Timestamp.UnixMilli(),
	}
}

// ParseReceipt normalizes a receipt event. ok is false for receipt types
// that do not change a message status.
func ParseReceipt(evt *events.Receipt) (*ParsedReceipt, bool) {
	var status conversation.Status
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		status = conversation.StatusDelivered
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf, types.ReceiptTypePlayed:
		status = conversation.StatusRead
	default:
		return nil, false
	}
	return &ParsedReceipt{
		ChatJID:    evt.Chat.ToNonAD().String(),
		MessageIDs: append([]string(nil), evt.MessageIDs...),
		Status:     status,
		FromMe:     evt.IsFromMe,
		Timestamp:  evt.Timestamp.UnixMilli(),
	}, true
}

// ToMessage converts a ParsedMessage to a conversation message. Messages
// sent from the operator's phone are outbound of origin operator.
func (p *ParsedMessage) ToMessage() conversation.Message {
	m := conversation.Message{
		ID:        p.MsgID,
		Contact:   p.ChatJID,
		Body:      p.Body,
		Direction: conversation.Inbound,
		Origin:    conversation.OriginContact,
		Timestamp: time.UnixMilli(p.Timestamp),
	}
	if p.FromMe {
		m.Direction = conversation.Outbound
		m.Origin = conversation.OriginOperator
		m.Status = conversation.StatusSent
	}
	return m
}

// NormalizeJID strips device and agent suffixes from a JID string.
// Unparseable input is returned unchanged.
func NormalizeJID(jid string) string {
	if jid == "" {
		return ""
	}
	parsed, err := types.ParseJID(jid)
	if err != nil || parsed.Server == "" {
		return jid
	}
	return parsed.ToNonAD().String()
}

// messageKinds is checked in order. text reports the part of a message the
// assistant can read, if any.
var messageKinds = []struct {
	kind string
	is   func(*waE2E.Message) bool
	text func(*waE2E.Message) string
}{
	{"text",
		func(m *waE2E.Message) bool { return m.GetConversation() != "" || m.GetExtendedTextMessage() != nil },
		func(m *waE2E.Message) string {
			if c := m.GetConversation(); c != "" {
				return c
			}
			return m.GetExtendedTextMessage().GetText()
		}},
	{"image",
		func(m *waE2E.Message) bool { return m.GetImageMessage() != nil },
		func(m *waE2E.Message) string { return m.GetImageMessage().GetCaption() }},
	{"video",
		func(m *waE2E.Message) bool { return m.GetVideoMessage() != nil },
		func(m *waE2E.Message) string { return m.GetVideoMessage().GetCaption() }},
	{"document",
		func(m *waE2E.Message) bool { return m.GetDocumentMessage() != nil },
		func(m *waE2E.Message) string { return m.GetDocumentMessage().GetCaption() }},
	{"audio", func(m *waE2E.Message) bool { return m.GetAudioMessage() != nil }, nil},
	{"sticker", func(m *waE2E.Message) bool { return m.GetStickerMessage() != nil }, nil},
	{"contact", func(m *waE2E.Message) bool { return m.GetContactMessage() != nil }, nil},
	{"location", func(m *waE2E.Message) bool { return m.GetLocationMessage() != nil }, nil},
}

// classify returns the message kind and its readable text.
func classify(msg *waE2E.Message) (kind, text string) {
	if msg == nil {
		return "unknown", ""
	}
	for _, k := range messageKinds {
		if !k.is(msg) {
			continue
		}
		if k.text != nil {
			text = k.text(msg)
		}
		return k.kind, text
	}
	return "unknown", ""
}
