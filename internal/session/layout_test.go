package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBaseDirDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got, want := For("main").Dir, filepath.Join(home, ".wppbot", "sessions", "main"); got != want {
		t.Errorf("For(main).Dir = %q, want %q", got, want)
	}
}

func TestHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)
	if got := ConfigPath(); got != filepath.Join(base, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestLayoutFiles(t *testing.T) {
	l := For("loja")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"socket", l.Socket, filepath.Join("sessions", "loja", "daemon.sock")},
		{"lock", l.Lock, filepath.Join("sessions", "loja", "LOCK")},
		{"journal", l.Journal, filepath.Join("sessions", "loja", "wppbot.db")},
		{"device", l.DeviceDB, filepath.Join("sessions", "loja", "session.db")},
		{"profile", l.Profile, filepath.Join("sessions", "loja", "assistant.yaml")},
		{"log", l.Log, filepath.Join("sessions", "loja", "logs", "wppbotd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasSuffix(tt.got, tt.want) {
				t.Errorf("path = %q, want suffix %s", tt.got, tt.want)
			}
		})
	}
}

func TestEnsure(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	l := For("test")
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{l.Dir, l.LogDir} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0o700 {
			t.Errorf("%s mode = %v, want dir 0700", d, info.Mode())
		}
	}
}

func TestList(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if names, err := List(); err != nil || names != nil {
		t.Fatalf("List() on empty home = %v, %v", names, err)
	}
	for _, n := range []string{"padaria", "main", "Not-Valid"} {
		if err := os.MkdirAll(For(n).Dir, 0o700); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(BaseDir(), "sessions", "stray.txt"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	names, err := List()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "main,padaria" {
		t.Errorf("List() = %v, want [main padaria]", names)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"main", false},
		{"loja42", false},
		{"padaria-centro", false},
		{"my_session", false},
		{"2nd-store", false},
		{strings.Repeat("a", 64), false},
		{strings.Repeat("a", 65), true},
		{"", true},
		{"Main", true},
		{"my session", true},
		{"my.session", true},
		{"my/session", true},
		{"-debug", true},
		{"_tmp", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
