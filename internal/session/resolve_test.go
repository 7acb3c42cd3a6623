package session

import (
	"os"
	"testing"
)

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Setenv(SessionEnv, "")

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultSessionName)
	}

	if err := os.WriteFile(ConfigPath(), []byte("default_session = \"work\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() = %q, want config default work", got)
	}

	t.Setenv(SessionEnv, "bakery")
	if got := Resolve(""); got != "bakery" {
		t.Errorf("Resolve() = %q, env must beat config", got)
	}
	if got := Resolve("other"); got != "other" {
		t.Errorf("Resolve(other) = %q, flag must win", got)
	}
}

func TestResolveIgnoresBrokenConfig(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Setenv(SessionEnv, "")
	if err := os.WriteFile(ConfigPath(), []byte("default_session = [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve() with unreadable config = %q, want %q", got, DefaultSessionName)
	}
}
