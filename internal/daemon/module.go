package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/digest"
	"github.com/matheus3301/wppbot/internal/ingest"
	"github.com/matheus3301/wppbot/internal/llm/anthropic"
	"github.com/matheus3301/wppbot/internal/llm/openai"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/logging"
	"github.com/matheus3301/wppbot/internal/metrics"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/session"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"github.com/matheus3301/wppbot/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// LockOwner is recorded in the session lock file.
const LockOwner = "wppbotd"

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Debug       bool
	// Config overrides ~/.wppbot/config.toml when set.
	Config *config.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLayout,
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideProfiles,
			provideCore,
			provideGenerator,
			provideAdapter,
			provideSender,
			provideQueue,
			provideCollector,
			provideResponder,
			provideIngestEngine,
			provideMetricsServer,
			provideDigestScheduler,
			provideInboxService,
			provideAssistantService,
			provideSessionService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.LoadOrDefault(session.ConfigPath())
}

// provideLayout resolves the session's files, applying the socket override.
func provideLayout(p Params) session.Layout {
	l := session.For(p.SessionName)
	if p.SocketPath != "" {
		l.Socket = p.SocketPath
	}
	return l
}

func provideLogger(p Params, l session.Layout) (*zap.Logger, error) {
	return logging.New(l.Log, l.Name, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(l session.Layout, logger *zap.Logger) (*lock.Lock, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}
	lk, err := lock.Acquire(l.Lock, LockOwner)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.String("session", l.Name), zap.String("path", l.Lock))
	return lk, nil
}

// provideStore depends on the lock so the journal is never opened by two daemons.
func provideStore(l session.Layout, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(l.Journal)
	if err != nil {
		return nil, err
	}
	change, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if change.Applied() {
		logger.Info("journal schema migrated", zap.Uint("from", change.From), zap.Uint("to", change.To))
	}
	logger.Info("journal opened", zap.String("path", db.Path()), zap.Uint("schema", change.To))
	return db, nil
}

func provideProfiles(l session.Layout, logger *zap.Logger) (*assistant.ProfileStore, error) {
	return assistant.NewProfileStore(l.Profile, logger.Named("profile"))
}

// provideCore builds the conversation core and replays the journal into it.
func provideCore(db *store.DB, profiles *assistant.ProfileStore, logger *zap.Logger) (*conversation.Core, error) {
	core := conversation.New(conversation.Options{
		WindowSize: profiles.Current().WindowSize,
		Journal:    db,
		Logger:     logger.Named("core"),
	})
	if err := restoreCore(core, db); err != nil {
		return nil, err
	}
	logger.Info("conversation core restored",
		zap.Int("messages", core.Store().Len()),
		zap.Int("conversations", len(core.Conversations())),
	)

	profiles.OnChange(func(p assistant.Profile) {
		core.Window().Resize(p.WindowSize)
	})
	return core, nil
}

func restoreCore(core *conversation.Core, db *store.DB) error {
	msgs, err := db.LoadMessages()
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	marks, err := db.LoadMarks()
	if err != nil {
		return fmt.Errorf("load watermarks: %w", err)
	}
	return core.Restore(msgs, marks)
}

func provideGenerator(cfg *config.Config, logger *zap.Logger) (assistant.Generator, error) {
	key := cfg.Provider.APIKey()
	if key == "" {
		logger.Warn("provider API key not set, replies will use the fallback message",
			zap.String("provider", cfg.Provider.Name),
			zap.String("env", cfg.Provider.KeyEnv()),
		)
	}
	return newGenerator(cfg.Provider, key)
}

func newGenerator(p config.ProviderConfig, key string) (assistant.Generator, error) {
	switch p.Name {
	case config.ProviderOpenAI:
		return openai.NewClient(key, p.BaseURL, p.Timeout.Duration), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(key, p.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

func provideAdapter(l session.Layout, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), l, b, logger.Named("wa"))
}

func provideSender(db *store.DB, adapter *wa.Adapter, core *conversation.Core, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, core, b, logger.Named("outbox"))
}

func provideQueue(db *store.DB, sender *outbox.Sender) *outbox.Queue {
	return outbox.NewQueue(db, sender)
}

func provideCollector(core *conversation.Core, machine *status.Machine, b *bus.Bus) *metrics.Collector {
	c := metrics.NewCollector(core, machine)
	c.WatchBus(b)
	return c
}

func provideResponder(cfg *config.Config, core *conversation.Core, gen assistant.Generator, profiles *assistant.ProfileStore, queue *outbox.Queue, collector *metrics.Collector, logger *zap.Logger) *assistant.Responder {
	return assistant.NewResponder(assistant.Config{
		Core:       core,
		Generator:  gen,
		Profiles:   profiles,
		Dispatcher: queue,
		Observer:   collector,
		Timeout:    cfg.Provider.Timeout.Duration,
		Logger:     logger.Named("assistant"),
	})
}

func provideIngestEngine(cfg *config.Config, core *conversation.Core, db *store.DB, b *bus.Bus, responder *assistant.Responder, adapter *wa.Adapter, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(ingest.Options{
		Core:      core,
		DB:        db,
		Bus:       b,
		Replier:   responder,
		AutoReply: cfg.AutoReply,
		Contacts:  adapter,
		Logger:    logger.Named("ingest"),
	})
}

func provideMetricsServer(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Addr, collector, logger.Named("metrics"))
}

func provideDigestScheduler(cfg *config.Config, core *conversation.Core, db *store.DB, b *bus.Bus, logger *zap.Logger) *digest.Scheduler {
	return digest.NewScheduler(digest.Options{
		Core:      core,
		DB:        db,
		Bus:       b,
		Schedule:  cfg.Digest.Schedule,
		Retention: cfg.Digest.Retention.Duration,
		Logger:    logger.Named("digest"),
	})
}

func provideInboxService(core *conversation.Core, db *store.DB, b *bus.Bus, queue *outbox.Queue, logger *zap.Logger) *api.InboxService {
	return api.NewInboxService(core, db, b, queue, logger.Named("inbox"))
}

func provideAssistantService(cfg *config.Config, profiles *assistant.ProfileStore, responder *assistant.Responder) *api.AssistantService {
	return api.NewAssistantService(cfg.Provider.Name, profiles, responder)
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, adapter *wa.Adapter, core *conversation.Core) *api.SessionService {
	return api.NewSessionService(p.SessionName, cfg.AutoReply, m, adapter, core)
}

type lifecycleDeps struct {
	fx.In

	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Adapter   *wa.Adapter
	Engine    *ingest.Engine
	Sender    *outbox.Sender
	Responder *assistant.Responder
	Profiles  *assistant.ProfileStore
	Metrics   *metrics.Server
	Digest    *digest.Scheduler
	Machine   *status.Machine
	Bus       *bus.Bus
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := d.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start ingestion (subscribes to wa.* bus events).
			d.Engine.Start(ctx)

			// Register event handler for whatsmeow events.
			handler := wa.NewEventHandler(d.Bus, d.Machine, d.Adapter, logger.Named("wa"))
			d.Adapter.RegisterEventHandler(handler.Handle)

			// Start gRPC server in background.
			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			d.Sender.Start(ctx)

			if err := d.Metrics.Start(); err != nil {
				return err
			}
			if err := d.Digest.Start(); err != nil {
				return err
			}

			go func() {
				if err := d.Profiles.Watch(ctx); err != nil {
					logger.Warn("assistant profile watch stopped", zap.Error(err))
				}
			}()

			// Transition state based on auth status.
			if d.Adapter.IsLoggedIn() {
				_ = d.Machine.Transition(status.Connecting)
				go func() {
					if err := d.Adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = d.Machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = d.Machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			d.Digest.Stop()
			d.Engine.Stop()
			d.Responder.Stop()
			d.Sender.Stop()
			d.Adapter.Disconnect()
			var errs []error
			if err := d.Metrics.Stop(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop metrics: %w", err))
			}
			d.Server.Stop(stopCtx)
			if err := d.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return errors.Join(errs...)
		},
	})
}
