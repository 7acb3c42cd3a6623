package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/conversation"
	"go.uber.org/zap"
)

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
		field  string
	}{
		{"defaults", func(*Profile) {}, ""},
		{"temperature low", func(p *Profile) { p.Temperature = -0.1 }, "temperature"},
		{"temperature high", func(p *Profile) { p.Temperature = 1.5 }, "temperature"},
		{"temperature bounds", func(p *Profile) { p.Temperature = 1 }, ""},
		{"max tokens low", func(p *Profile) { p.MaxTokens = 49 }, "max_tokens"},
		{"max tokens high", func(p *Profile) { p.MaxTokens = 501 }, "max_tokens"},
		{"max tokens bound", func(p *Profile) { p.MaxTokens = 500 }, ""},
		{"empty prompt", func(p *Profile) { p.SystemPrompt = "  " }, "system_prompt"},
		{"empty model", func(p *Profile) { p.Model = "" }, "model"},
		{"zero window", func(p *Profile) { p.WindowSize = 0 }, "window_size"},
		{"empty fallback", func(p *Profile) { p.FallbackMessage = "" }, "fallback_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr *conversation.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("Validate() error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "assistant.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
	if p != DefaultProfile() {
		t.Errorf("profile = %+v, want defaults", p)
	}
}

func TestLoadProfilePartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	if err := os.WriteFile(path, []byte("model: llama-3.3-70b-versatile\ntemperature: 0.2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Model != "llama-3.3-70b-versatile" || p.Temperature != 0.2 {
		t.Errorf("profile = %+v", p)
	}
	if p.MaxTokens != DefaultMaxTokens || p.FallbackMessage != DefaultFallbackMessage {
		t.Errorf("unset fields lost their defaults: %+v", p)
	}
}

func TestSaveProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "assistant.yaml")
	want := DefaultProfile()
	want.SystemPrompt = "Seja breve."
	want.WindowSize = 4
	if err := SaveProfile(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("loaded %+v, want %+v", got, want)
	}

	bad := want
	bad.MaxTokens = 10
	if err := SaveProfile(path, bad); err == nil {
		t.Error("SaveProfile() accepted an invalid profile")
	}
}

func TestProfileStoreCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	s, err := NewProfileStore(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if s.Current() != DefaultProfile() {
		t.Errorf("current = %+v", s.Current())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default profile not written: %v", err)
	}
}

func TestProfileStoreUpdate(t *testing.T) {
	s, err := NewProfileStore(filepath.Join(t.TempDir(), "assistant.yaml"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	var seen []Profile
	s.OnChange(func(p Profile) { seen = append(seen, p) })

	p, err := s.Update(func(p *Profile) { p.Temperature = 0.3 })
	if err != nil {
		t.Fatal(err)
	}
	if p.Temperature != 0.3 || s.Current().Temperature != 0.3 {
		t.Errorf("temperature = %v", s.Current().Temperature)
	}
	if len(seen) != 1 {
		t.Errorf("listeners called %d times, want 1", len(seen))
	}

	if _, err := s.Update(func(p *Profile) { p.MaxTokens = 9000 }); err == nil {
		t.Fatal("Update() accepted an invalid profile")
	}
	if s.Current().MaxTokens != DefaultMaxTokens {
		t.Errorf("rejected update changed max tokens to %d", s.Current().MaxTokens)
	}

	reloaded, err := LoadProfile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Temperature != 0.3 {
		t.Errorf("persisted temperature = %v", reloaded.Temperature)
	}
}

func TestProfileStoreReloadKeepsCurrentOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	s, err := NewProfileStore(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("temperature: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Error("Reload() accepted an invalid file")
	}
	if s.Current() != DefaultProfile() {
		t.Errorf("current = %+v, want defaults kept", s.Current())
	}
}

func TestProfileStoreWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	s, err := NewProfileStore(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	changed := make(chan Profile, 4)
	s.OnChange(func(p Profile) { changed <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx) }()
	// Let the watcher register before the write.
	time.Sleep(100 * time.Millisecond)

	next := DefaultProfile()
	next.WindowSize = 3
	if err := SaveProfile(path, next); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p.WindowSize != 3 {
			t.Errorf("window size = %d, want 3", p.WindowSize)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for profile reload")
	}
}
