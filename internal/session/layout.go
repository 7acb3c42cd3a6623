package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "WPPBOT_HOME"

// BaseDir returns $WPPBOT_HOME, or ~/.wppbot.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppbot")
}

// ConfigPath returns the path of config.toml, shared by every session.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

func sessionsDir() string {
	return filepath.Join(BaseDir(), "sessions")
}

// Layout is the on-disk layout of one session. Each session pairs its own
// WhatsApp device and keeps its own journal and assistant profile.
type Layout struct {
	Name     string
	Dir      string
	Socket   string // daemon gRPC socket
	Lock     string // held by the running daemon
	DeviceDB string // whatsmeow device store
	Journal  string // messages, outbox and digests
	Profile  string // assistant.yaml
	LogDir   string
	Log      string
}

// For returns the layout of the named session. It does not validate name.
func For(name string) Layout {
	dir := filepath.Join(sessionsDir(), name)
	logs := filepath.Join(dir, "logs")
	return Layout{
		Name:     name,
		Dir:      dir,
		Socket:   filepath.Join(dir, "daemon.sock"),
		Lock:     filepath.Join(dir, "LOCK"),
		DeviceDB: filepath.Join(dir, "session.db"),
		Journal:  filepath.Join(dir, "wppbot.db"),
		Profile:  filepath.Join(dir, "assistant.yaml"),
		LogDir:   logs,
		Log:      filepath.Join(logs, "wppbotd.log"),
	}
}

// Ensure creates the session and log directories, readable by the owner
// only.
func (l Layout) Ensure() error {
	for _, d := range []string{l.Dir, l.LogDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// List returns the names of existing sessions in order. Directories whose
// names are not valid session names are skipped.
func List() ([]string, error) {
	entries, err := os.ReadDir(sessionsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Session names become directory names and appear after --session, so
// they must start with a letter or digit.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 lowercase letters, digits, '-' or '_', starting with a letter or digit", name)
	}
	return nil
}
