// Command wppbotd runs the WhatsApp assistant daemon for one session.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/daemon"
	"github.com/matheus3301/wppbot/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (default $"+session.SessionEnv+", then config default_session)")
	configFlag := flag.String("config", "", "config file (default "+session.ConfigPath()+")")
	debugFlag := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	name := session.Resolve(*sessionFlag)
	if err := session.ValidateName(name); err != nil {
		exit(err)
	}
	params := daemon.Params{SessionName: name, Debug: *debugFlag}
	if *configFlag != "" {
		cfg, err := config.Load(*configFlag)
		if err != nil {
			exit(err)
		}
		params.Config = cfg
	}

	fx.New(
		daemon.Module(params),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: l.Named("fx")}
			if !*debugFlag {
				zl.UseLogLevel(zap.DebugLevel)
			}
			return zl
		}),
	).Run()
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "wppbotd: %v\n", err)
	os.Exit(1)
}
