package rpc

// Message is one journaled message.
type Message struct {
	ID              string `json:"id"`
	Seq             uint64 `json:"seq"`
	Contact         string `json:"contact"`
	Body            string `json:"body"`
	Direction       string `json:"direction"`
	Status          string `json:"status"`
	Origin          string `json:"origin"`
	TimestampUnixMs int64  `json:"timestamp_unix_ms"`
}

// Conversation is the per-contact summary shown in lists.
type Conversation struct {
	Contact            string `json:"contact"`
	DisplayName        string `json:"display_name,omitempty"`
	LastMessageSummary string `json:"last_message_summary"`
	LastActivityUnixMs int64  `json:"last_activity_unix_ms"`
	UnreadCount        int    `json:"unread_count"`
	MessageCount       int    `json:"message_count"`
}

// Stats are the global conversation statistics.
type Stats struct {
	TotalMessages       int `json:"total_messages"`
	IncomingMessages    int `json:"incoming_messages"`
	OutgoingMessages    int `json:"outgoing_messages"`
	ActiveConversations int `json:"active_conversations"`
	UnreadMessages      int `json:"unread_messages"`
	ResponseRate        int `json:"response_rate"`
	// AverageResponseMs is only meaningful when AverageResponseAvailable is set.
	AverageResponseMs        int64  `json:"average_response_ms"`
	AverageResponseAvailable bool   `json:"average_response_available"`
	AverageResponse          string `json:"average_response"`
}

// Digest is a persisted stats snapshot.
type Digest struct {
	TakenAtUnixMs int64 `json:"taken_at_unix_ms"`
	Stats         Stats `json:"stats"`
}

// Event is one entry of the daemon event stream.
type Event struct {
	EventID          string   `json:"event_id"`
	Kind             string   `json:"kind"`
	OccurredAtUnixMs int64    `json:"occurred_at_unix_ms"`
	Message          *Message `json:"message,omitempty"`
	Detail           string   `json:"detail,omitempty"`
}

// Profile is the assistant profile.
type Profile struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	WindowSize      int     `json:"window_size"`
	FallbackMessage string  `json:"fallback_message"`
}

type ListConversationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// GetConversationRequest opens a conversation. Opening marks it read
// unless KeepUnread is set.
type GetConversationRequest struct {
	Contact    string `json:"contact"`
	Limit      int    `json:"limit,omitempty"`
	KeepUnread bool   `json:"keep_unread,omitempty"`
}

type GetConversationResponse struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	WindowTurns  int          `json:"window_turns"`
}

type MarkReadRequest struct {
	Contact string `json:"contact"`
}

type MarkReadResponse struct{}

type SendTextRequest struct {
	Contact string `json:"contact"`
	Text    string `json:"text"`
}

type SendTextResponse struct {
	Message Message `json:"message"`
}

type ClearHistoryRequest struct {
	Contact string `json:"contact"`
}

type ClearHistoryResponse struct {
	Cleared bool `json:"cleared"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Stats         Stats `json:"stats"`
	TakenAtUnixMs int64 `json:"taken_at_unix_ms"`
}

type ListDigestsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListDigestsResponse struct {
	Digests []Digest `json:"digests"`
}

// WatchEventsRequest filters the stream by event kind prefix; empty means
// message and stats events.
type WatchEventsRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

type GetProfileRequest struct{}

type ProfileResponse struct {
	Profile Profile `json:"profile"`
}

type UpdatePromptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// UpdateParametersRequest changes only the fields that are set.
type UpdateParametersRequest struct {
	Model           *string  `json:"model,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	WindowSize      *int     `json:"window_size,omitempty"`
	FallbackMessage *string  `json:"fallback_message,omitempty"`
}

type ReplyRequest struct {
	Contact string `json:"contact"`
}

type ReplyResponse struct {
	Message Message `json:"message"`
}

type GetSessionStatusRequest struct{}

type GetSessionStatusResponse struct {
	Session           string `json:"session"`
	Status            string `json:"status"`
	StatusSinceUnixMs int64  `json:"status_since_unix_ms"`
	PhoneNumber       string `json:"phone_number,omitempty"`
	UptimeMs          int64  `json:"uptime_ms"`
	AutoReply         bool   `json:"auto_reply"`
	ConversationCount int    `json:"conversation_count"`
	MessageCount      int    `json:"message_count"`
}

type StartAuthRequest struct{}

type AuthEvent struct {
	Type    string `json:"type"`
	QRCode  string `json:"qr_code,omitempty"`
	Message string `json:"message,omitempty"`
}

type LogoutRequest struct{}

type ConnectRequest struct{}

type DisconnectRequest struct{}

// SessionActionResponse reports the outcome of a session action.
type SessionActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
