package model

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type queueDispatcher struct {
	mu   sync.Mutex
	msgs []conversation.Message
}

func (d *queueDispatcher) Dispatch(_ context.Context, m conversation.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, m)
	return nil
}

type fallbackReplier struct {
	core *conversation.Core
}

func (r fallbackReplier) Reply(_ context.Context, contact string) (conversation.Message, error) {
	return r.core.Append(conversation.Message{
		Contact:   contact,
		Body:      "Já te respondo!",
		Direction: conversation.Outbound,
		Origin:    conversation.OriginFallback,
	})
}

type harness struct {
	vm   *ViewModel
	core *conversation.Core
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "wppbot-vm-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	profiles, err := assistant.NewProfileStore(filepath.Join(dir, "profile.yaml"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	core := conversation.New(conversation.Options{})
	machine := status.NewMachine(b)

	srv := grpc.NewServer()
	rpc.RegisterInboxServer(srv, api.NewInboxService(core, db, b, &queueDispatcher{}, zap.NewNop()))
	rpc.RegisterAssistantServer(srv, api.NewAssistantService("openai", profiles, fallbackReplier{core: core}))
	rpc.RegisterSessionServer(srv, api.NewSessionService("test", true, machine, nil, core))

	socket := filepath.Join(dir, "d.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial(socket)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &harness{vm: NewViewModel(client), core: core}
}

func (h *harness) inbound(t *testing.T, contact, body string) {
	t.Helper()
	if _, err := h.core.Append(conversation.Message{
		Contact:   contact,
		Body:      body,
		Direction: conversation.Inbound,
		Origin:    conversation.OriginContact,
	}); err != nil {
		t.Fatal(err)
	}
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOpenConversationMarksRead(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	h.inbound(t, "maria@s.whatsapp.net", "Oi")
	h.inbound(t, "maria@s.whatsapp.net", "Tudo bem?")

	if err := h.vm.LoadConversations(ctx); err != nil {
		t.Fatal(err)
	}
	convs := h.vm.Conversations()
	if len(convs) != 1 || convs[0].UnreadCount != 2 {
		t.Fatalf("conversations = %+v", convs)
	}

	if err := h.vm.OpenConversation(ctx, "maria@s.whatsapp.net"); err != nil {
		t.Fatal(err)
	}
	if h.vm.ActiveContact() != "maria@s.whatsapp.net" {
		t.Errorf("active = %q", h.vm.ActiveContact())
	}
	if th := h.vm.Thread(); th == nil || len(th.Messages) != 2 {
		t.Fatalf("thread = %+v", th)
	}
	if c, _ := h.vm.Conversation("maria@s.whatsapp.net"); c.UnreadCount != 0 {
		t.Errorf("cached unread = %d, want 0", c.UnreadCount)
	}

	// A message arriving while open stays unread on reload.
	h.inbound(t, "maria@s.whatsapp.net", "Alô?")
	if err := h.vm.ReloadActive(ctx); err != nil {
		t.Fatal(err)
	}
	if th := h.vm.Thread(); th.Conversation.UnreadCount != 1 || len(th.Messages) != 3 {
		t.Errorf("after reload: unread=%d msgs=%d", th.Conversation.UnreadCount, len(th.Messages))
	}
}

func TestActionsRequireOpenConversation(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	for name, fn := range map[string]func(context.Context) error{
		"clear": h.vm.ClearHistory,
		"reply": h.vm.Reply,
		"send":  func(ctx context.Context) error { return h.vm.SendText(ctx, "oi") },
	} {
		if err := fn(ctx); err == nil || !strings.Contains(err.Error(), "no conversation open") {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestSendReplyAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	h.inbound(t, "ana@s.whatsapp.net", "Qual o preço?")
	if err := h.vm.LoadConversations(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.vm.OpenConversation(ctx, "ana@s.whatsapp.net"); err != nil {
		t.Fatal(err)
	}

	if err := h.vm.SendText(ctx, "Um momento"); err != nil {
		t.Fatal(err)
	}
	if msg := h.vm.Flash.Get(); msg != "Message queued" {
		t.Errorf("flash = %q", msg)
	}

	if err := h.vm.Reply(ctx); err != nil {
		t.Fatal(err)
	}
	if fm := h.vm.Flash.GetMessage(); fm == nil || !strings.Contains(fm.Text, "fallback") {
		t.Errorf("flash after fallback reply = %+v", fm)
	}
	th := h.vm.Thread()
	if len(th.Messages) != 3 || th.Messages[2].Origin != "fallback" {
		t.Fatalf("thread = %+v", th.Messages)
	}

	if err := h.vm.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if th := h.vm.Thread(); th.WindowTurns != 0 {
		t.Errorf("window turns = %d after clear", th.WindowTurns)
	}

	h.vm.CloseConversation()
	if h.vm.ActiveContact() != "" || h.vm.Thread() != nil {
		t.Error("close left state behind")
	}
}

func TestStatsAndProfile(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	h.inbound(t, "a@s.whatsapp.net", "oi")

	if err := h.vm.LoadStats(ctx); err != nil {
		t.Fatal(err)
	}
	stats, digests := h.vm.Stats()
	if stats == nil || stats.Stats.TotalMessages != 1 || stats.Stats.IncomingMessages != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(digests) != 0 {
		t.Errorf("digests = %+v, want none", digests)
	}

	if err := h.vm.LoadProfile(ctx); err != nil {
		t.Fatal(err)
	}
	if p := h.vm.Profile(); p == nil || p.Provider != "openai" {
		t.Fatalf("profile = %+v", p)
	}

	if err := h.vm.UpdatePrompt(ctx, "Seja breve."); err != nil {
		t.Fatal(err)
	}
	if p := h.vm.Profile(); p.SystemPrompt != "Seja breve." {
		t.Errorf("prompt = %q", p.SystemPrompt)
	}

	window := 4
	if err := h.vm.UpdateParameters(ctx, &rpc.UpdateParametersRequest{WindowSize: &window}); err != nil {
		t.Fatal(err)
	}
	if p := h.vm.Profile(); p.WindowSize != 4 {
		t.Errorf("window = %d", p.WindowSize)
	}
}

func TestSessionStatusAndActions(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	if err := h.vm.LoadSessionStatus(ctx); err != nil {
		t.Fatal(err)
	}
	ss := h.vm.SessionStatus()
	if ss == nil || ss.Session != "test" || !ss.AutoReply {
		t.Errorf("session = %+v", ss)
	}
	// The harness runs without a WhatsApp adapter.
	if err := h.vm.Connect(ctx); err == nil {
		t.Error("connect without adapter succeeded")
	}
}

func TestFindConversation(t *testing.T) {
	h := newHarness(t)
	ctx := ctxTimeout(t)
	h.inbound(t, "5585999990001@s.whatsapp.net", "oi")
	if err := h.vm.LoadConversations(ctx); err != nil {
		t.Fatal(err)
	}
	if c, ok := h.vm.FindConversation("99990001"); !ok || c.Contact != "5585999990001@s.whatsapp.net" {
		t.Errorf("find by number = %+v, %v", c, ok)
	}
	if _, ok := h.vm.FindConversation("  "); ok {
		t.Error("blank query matched")
	}
}

func TestRefreshSignalCoalesces(t *testing.T) {
	vm := NewViewModel(nil)
	vm.signalRefresh()
	vm.signalRefresh()
	select {
	case <-vm.RefreshCh():
	default:
		t.Fatal("no refresh signal")
	}
	select {
	case <-vm.RefreshCh():
		t.Error("signals did not coalesce")
	default:
	}
}
