package bus

import "time"

// Event kinds. Subscribers filter by prefix, so each family shares one.
const (
	PrefixWhatsApp = "wa."
	PrefixMessage  = "message."
	PrefixSession  = "session."
	PrefixSync     = "sync."

	// Raw WhatsApp traffic, consumed by ingestion.
	KindWAMessage      = "wa.message"
	KindWAReceipt      = "wa.receipt"
	KindWAContact      = "wa.contact"
	KindWAContactBatch = "wa.contact_batch"

	// Conversation store changes.
	KindMessageAppended   = "message.appended"
	KindMessageStatus     = "message.status"
	KindMessageRead       = "message.read"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"

	// Session lifecycle.
	KindSessionStatusChanged = "session.status_changed"
	KindSessionQRGenerated   = "session.qr_generated"
	KindSessionAuthenticated = "session.authenticated"
	KindSessionAuthFailed    = "session.auth_failed"
	KindSessionLoggedOut     = "session.logged_out"

	KindSyncConnected    = "sync.connected"
	KindSyncDisconnected = "sync.disconnected"

	KindStatsDigest = "stats.digest"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
