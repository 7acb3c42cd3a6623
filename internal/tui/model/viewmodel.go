package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"google.golang.org/grpc"
)

// ViewModel caches daemon state for the dashboard and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client        *rpc.Client
	session       *rpc.GetSessionStatusResponse
	conversations []rpc.Conversation
	thread        *rpc.GetConversationResponse
	activeContact string
	stats         *rpc.GetStatsResponse
	digests       []rpc.Digest
	profile       *rpc.Profile

	Flash *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *rpc.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadSessionStatus fetches current session status.
func (vm *ViewModel) LoadSessionStatus(ctx context.Context) error {
	resp, err := vm.client.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.session = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list, most recent first.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.Inbox.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenConversation loads a conversation and makes it the active one. The
// daemon marks it read as a side effect.
func (vm *ViewModel) OpenConversation(ctx context.Context, contact string) error {
	resp, err := vm.client.Inbox.GetConversation(ctx, &rpc.GetConversationRequest{Contact: contact})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.activeContact = contact
	vm.thread = resp
	for i := range vm.conversations {
		if vm.conversations[i].Contact == contact {
			vm.conversations[i].UnreadCount = 0
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// ReloadActive refreshes the active conversation without marking it read
// again, so messages arriving while it is open stay counted until the
// operator reopens it.
func (vm *ViewModel) ReloadActive(ctx context.Context) error {
	contact := vm.ActiveContact()
	if contact == "" {
		return nil
	}
	resp, err := vm.client.Inbox.GetConversation(ctx, &rpc.GetConversationRequest{Contact: contact, KeepUnread: true})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activeContact == contact {
		vm.thread = resp
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// CloseConversation clears the active conversation.
func (vm *ViewModel) CloseConversation() {
	vm.mu.Lock()
	vm.activeContact = ""
	vm.thread = nil
	vm.mu.Unlock()
}

// SendText queues an operator message to the active conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	contact := vm.ActiveContact()
	if contact == "" {
		return fmt.Errorf("no conversation open")
	}
	if _, err := vm.client.Inbox.SendText(ctx, &rpc.SendTextRequest{Contact: contact, Text: text}); err != nil {
		return err
	}
	vm.Flash.Info("Message queued")
	return vm.ReloadActive(ctx)
}

// ClearHistory drops the assistant's context for the active conversation.
func (vm *ViewModel) ClearHistory(ctx context.Context) error {
	contact := vm.ActiveContact()
	if contact == "" {
		return fmt.Errorf("no conversation open")
	}
	resp, err := vm.client.Inbox.ClearHistory(ctx, &rpc.ClearHistoryRequest{Contact: contact})
	if err != nil {
		return err
	}
	if resp.Cleared {
		vm.Flash.Info("Assistant history cleared")
	} else {
		vm.Flash.Warn("No assistant history to clear")
	}
	return vm.ReloadActive(ctx)
}

// Reply asks the assistant to answer the active conversation now.
func (vm *ViewModel) Reply(ctx context.Context) error {
	contact := vm.ActiveContact()
	if contact == "" {
		return fmt.Errorf("no conversation open")
	}
	resp, err := vm.client.Assistant.Reply(ctx, &rpc.ReplyRequest{Contact: contact})
	if err != nil {
		return err
	}
	if resp.Message.Origin == "fallback" {
		vm.Flash.Warn("Assistant unavailable, fallback reply queued")
	} else {
		vm.Flash.Info("Assistant reply queued")
	}
	return vm.ReloadActive(ctx)
}

// LoadStats fetches live statistics and the most recent digests.
func (vm *ViewModel) LoadStats(ctx context.Context) error {
	stats, err := vm.client.Inbox.GetStats(ctx, &rpc.GetStatsRequest{})
	if err != nil {
		return err
	}
	digests, err := vm.client.Inbox.ListDigests(ctx, &rpc.ListDigestsRequest{Limit: 10})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.stats = stats
	vm.digests = digests.Digests
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadProfile fetches the assistant profile.
func (vm *ViewModel) LoadProfile(ctx context.Context) error {
	resp, err := vm.client.Assistant.GetProfile(ctx, &rpc.GetProfileRequest{})
	if err != nil {
		return err
	}
	vm.setProfile(resp.Profile)
	return nil
}

// UpdatePrompt replaces the assistant's system prompt.
func (vm *ViewModel) UpdatePrompt(ctx context.Context, prompt string) error {
	resp, err := vm.client.Assistant.UpdatePrompt(ctx, &rpc.UpdatePromptRequest{SystemPrompt: prompt})
	if err != nil {
		return err
	}
	vm.setProfile(resp.Profile)
	vm.Flash.Info("System prompt updated")
	return nil
}

// UpdateParameters applies a partial assistant parameter update.
func (vm *ViewModel) UpdateParameters(ctx context.Context, req *rpc.UpdateParametersRequest) error {
	resp, err := vm.client.Assistant.UpdateParameters(ctx, req)
	if err != nil {
		return err
	}
	vm.setProfile(resp.Profile)
	vm.Flash.Info("Assistant parameters updated")
	return nil
}

func (vm *ViewModel) setProfile(p rpc.Profile) {
	vm.mu.Lock()
	vm.profile = &p
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Connect reconnects the daemon to WhatsApp.
func (vm *ViewModel) Connect(ctx context.Context) error {
	return sessionAction(ctx, vm, vm.client.Session.Connect, &rpc.ConnectRequest{})
}

// Disconnect drops the WhatsApp connection without logging out.
func (vm *ViewModel) Disconnect(ctx context.Context) error {
	return sessionAction(ctx, vm, vm.client.Session.Disconnect, &rpc.DisconnectRequest{})
}

// Logout unlinks the device.
func (vm *ViewModel) Logout(ctx context.Context) error {
	return sessionAction(ctx, vm, vm.client.Session.Logout, &rpc.LogoutRequest{})
}

func sessionAction[Req any](
	ctx context.Context,
	vm *ViewModel,
	call func(context.Context, *Req, ...grpc.CallOption) (*rpc.SessionActionResponse, error),
	req *Req,
) error {
	resp, err := call(ctx, req)
	if err != nil {
		return err
	}
	if resp.Success {
		vm.Flash.Info(resp.Message)
	} else {
		vm.Flash.Warn(resp.Message)
	}
	return vm.LoadSessionStatus(ctx)
}

// SessionStatus returns a snapshot of session status.
func (vm *ViewModel) SessionStatus() *rpc.GetSessionStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.session
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []rpc.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]rpc.Conversation(nil), vm.conversations...)
}

// Conversation looks up a cached conversation by contact.
func (vm *ViewModel) Conversation(contact string) (rpc.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.Contact == contact {
			return c, true
		}
	}
	return rpc.Conversation{}, false
}

// FindConversation returns the first conversation whose display name or
// contact contains query, ignoring case.
func (vm *ViewModel) FindConversation(query string) (rpc.Conversation, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rpc.Conversation{}, false
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if strings.Contains(strings.ToLower(c.DisplayName), q) || strings.Contains(strings.ToLower(c.Contact), q) {
			return c, true
		}
	}
	return rpc.Conversation{}, false
}

// ActiveContact returns the contact of the open conversation, if any.
func (vm *ViewModel) ActiveContact() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeContact
}

// Thread returns the open conversation with its messages.
func (vm *ViewModel) Thread() *rpc.GetConversationResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Stats returns the last fetched statistics and digests.
func (vm *ViewModel) Stats() (*rpc.GetStatsResponse, []rpc.Digest) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.stats, append([]rpc.Digest(nil), vm.digests...)
}

// Profile returns the last fetched assistant profile.
func (vm *ViewModel) Profile() *rpc.Profile {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.profile
}
