package session

import (
	"os"

	"github.com/matheus3301/wppbot/internal/config"
)

const DefaultSessionName = "main"

// SessionEnv selects the session when no flag is given.
const SessionEnv = "WPPBOT_SESSION"

// Resolve determines the active session name. The --session flag wins, then
// $WPPBOT_SESSION, then default_session from config.toml, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(SessionEnv); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
