package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePage struct {
	*tview.Box
	name                string
	inits, starts, stop int
}

func newFakePage(name string) *fakePage {
	return &fakePage{Box: tview.NewBox(), name: name}
}

func (f *fakePage) Name() string      { return f.name }
func (f *fakePage) Init()             { f.inits++ }
func (f *fakePage) Start()            { f.starts++ }
func (f *fakePage) Stop()             { f.stop++ }
func (f *fakePage) Hints() []MenuHint { return nil }

func TestPagesLifecycle(t *testing.T) {
	p := NewPages()
	list, thread := newFakePage("list"), newFakePage("thread")
	p.Add("list", list)
	p.Add("thread", thread)
	if list.inits != 1 || thread.inits != 1 {
		t.Fatalf("inits = %d/%d, want 1/1", list.inits, thread.inits)
	}

	var names []string
	p.SetOnChange(func(stack []Component) {
		names = names[:0]
		for _, c := range stack {
			names = append(names, c.Name())
		}
	})

	p.Push("list")
	p.Push("thread")
	p.Push("thread")
	if p.Depth() != 2 || thread.starts != 1 {
		t.Fatalf("depth = %d, thread starts = %d", p.Depth(), thread.starts)
	}
	if strings.Join(names, ">") != "list>thread" {
		t.Errorf("onChange stack = %v", names)
	}

	if got := p.Pop(); got != "thread" {
		t.Errorf("Pop = %q, want thread", got)
	}
	if thread.stop != 1 || list.starts != 2 {
		t.Errorf("thread stops = %d, list starts = %d", thread.stop, list.starts)
	}
	if got := p.Pop(); got != "" {
		t.Errorf("Pop at depth 1 = %q, want empty", got)
	}
	if p.Current() != "list" {
		t.Errorf("Current = %q", p.Current())
	}
}

func TestPagesResetStopsRemoved(t *testing.T) {
	p := NewPages()
	list, thread := newFakePage("list"), newFakePage("thread")
	p.Add("list", list)
	p.Add("thread", thread)
	p.Push("list")
	p.Push("thread")

	p.Reset("list")
	if p.Depth() != 1 || p.Current() != "list" {
		t.Fatalf("after reset: depth %d, current %q", p.Depth(), p.Current())
	}
	if thread.stop != 1 {
		t.Errorf("thread stops = %d, want 1", thread.stop)
	}
	if list.stop != 0 {
		t.Errorf("list was stopped although it stays on the stack")
	}
}

func TestFlashRepeatAndExpiry(t *testing.T) {
	f := NewFlashModel()
	now := time.Unix(1000, 0)
	f.now = func() time.Time { return now }

	f.Info("Message queued")
	f.Info("Message queued")
	m := f.GetMessage()
	if m == nil || m.Repeat != 2 {
		t.Fatalf("message = %+v, want repeat 2", m)
	}

	f.Warn("Message queued")
	if m := f.GetMessage(); m.Repeat != 1 || m.Level != FlashWarn {
		t.Errorf("level change should reset repeat: %+v", m)
	}

	now = now.Add(9 * time.Second)
	if f.Get() != "" {
		t.Errorf("warning still visible after expiry")
	}
}

func TestFlashErrStripsStatusPrefix(t *testing.T) {
	f := NewFlashModel()
	f.Err(status.Error(codes.FailedPrecondition, "session is not connected"))
	if got := f.Get(); got != "session is not connected" {
		t.Errorf("Get = %q", got)
	}
	f.Err(errors.New("dial unix: no such file"))
	if got := f.Get(); got != "dial unix: no such file" {
		t.Errorf("Get = %q", got)
	}
}

func TestMenuColumns(t *testing.T) {
	m := NewMenu(DefaultTheme())
	hints := make([]MenuHint, 0, 8)
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		hints = append(hints, MenuHint{Key: k, Description: "do " + k})
	}
	lines := strings.Split(m.render(hints), "\n")
	if len(lines) != menuRows {
		t.Fatalf("got %d rows, want %d", len(lines), menuRows)
	}
	if !strings.Contains(lines[0], "<a>") || !strings.Contains(lines[0], "<g>") {
		t.Errorf("first row = %q, want a and g", lines[0])
	}
	if strings.Contains(lines[2], "<h>") {
		t.Errorf("third row should hold c only: %q", lines[2])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("Ana Beatriz Figueiredo", 8); got != "Ana Bea…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var got []string
	p.SetOnSubmit(func(_ PromptMode, text string) { got = append(got, text) })

	for _, cmd := range []string{"stats", "chat maria", "chat maria", "profile"} {
		p.Activate(PromptCommand)
		p.SetText(cmd)
		p.done(tcell.KeyEnter)
	}
	if len(got) != 4 {
		t.Fatalf("submitted %v", got)
	}
	if h := p.History(); strings.Join(h, ",") != "stats,chat maria,profile" {
		t.Errorf("history = %v", h)
	}

	p.Activate(PromptCommand)
	p.step(-1)
	p.step(-1)
	if p.GetText() != "chat maria" {
		t.Errorf("recall = %q, want chat maria", p.GetText())
	}
	p.step(1)
	p.step(1)
	if p.GetText() != "" {
		t.Errorf("stepping past newest left %q", p.GetText())
	}
}

func TestPromptEmptySubmitCancels(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	submitted, cancelled := false, false
	p.SetOnSubmit(func(PromptMode, string) { submitted = true })
	p.SetOnCancel(func() { cancelled = true })

	p.Activate(PromptFilter)
	p.SetText("   ")
	p.done(tcell.KeyEnter)
	if submitted || !cancelled {
		t.Errorf("submitted=%v cancelled=%v", submitted, cancelled)
	}
}

func TestPromptCompletion(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.SetCompletions([]string{"chat", "clear", "connect", "stats"})
	p.Activate(PromptCommand)

	if got := p.complete("c"); len(got) != 3 {
		t.Errorf("complete(c) = %v", got)
	}
	if got := p.complete("chat maria"); got != nil {
		t.Errorf("arguments should not complete: %v", got)
	}
	p.Activate(PromptFilter)
	if got := p.complete("c"); got != nil {
		t.Errorf("filter mode completed %v", got)
	}
}
