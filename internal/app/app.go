package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/wifipub/internal/journal"
	"github.com/nerrad567/wifipub/internal/publisher"
)

// journalTimeout bounds one lifecycle record. Records are written with a
// context detached from shutdown so the final one still lands.
const journalTimeout = 2 * time.Second

// Gate is the connectivity gate the app waits on before any middleware call.
type Gate interface {
	Establish(ctx context.Context, onRequest func(err error)) error
	Close()
}

// Publisher is the periodic publisher driven by the app.
type Publisher interface {
	SetOnStage(callback func(stage publisher.Stage, err error))
	Setup(ctx context.Context) error
	Run(ctx context.Context) error
	Close() error
	Value() int32
}

// Logger defines the logging interface for the app.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HealthCheck is a named dependency probe run once the publisher is armed.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires the app. Gate and Publisher are required.
type Options struct {
	Gate      Gate
	Publisher Publisher
	Journal   journal.Recorder
	Logger    Logger
	Health    []HealthCheck
}

// App sequences startup: connectivity first, then middleware setup, then
// the publish loop until shutdown.
type App struct {
	gate    Gate
	pub     Publisher
	journal journal.Recorder
	logger  Logger
	health  []HealthCheck
}

// New creates an App from opts.
func New(opts Options) *App {
	a := &App{
		gate:    opts.Gate,
		pub:     opts.Publisher,
		journal: opts.Journal,
		logger:  opts.Logger,
		health:  opts.Health,
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}
	return a
}

// Run blocks until ctx is done. A shutdown before the network attaches
// returns nil without touching the middleware. Setup failures under the
// fail-fast policy are returned.
func (a *App) Run(ctx context.Context) error {
	if a.gate == nil || a.pub == nil {
		return errors.New("app: gate and publisher are required")
	}
	defer a.gate.Close()

	err := a.gate.Establish(ctx, func(reqErr error) {
		a.record(ctx, journal.KindConnectRequested, nil, reqErr)
	})
	if err != nil {
		if ctx.Err() != nil {
			a.record(ctx, journal.KindShutdown, map[string]any{"phase": "awaiting_connection"}, nil)
			return nil
		}
		return fmt.Errorf("awaiting connection: %w", err)
	}
	a.record(ctx, journal.KindConnected, nil, nil)

	a.pub.SetOnStage(func(stage publisher.Stage, err error) {
		a.record(ctx, journal.KindSetupStage, map[string]any{"stage": stage.String()}, err)
	})

	defer func() {
		if err := a.pub.Close(); err != nil {
			a.logger.Warn("publisher close failed", "error", err)
		}
	}()

	if err := a.pub.Setup(ctx); err != nil {
		return fmt.Errorf("setting up publisher: %w", err)
	}
	a.record(ctx, journal.KindArmed, nil, nil)
	a.runHealthChecks(ctx)

	runErr := a.pub.Run(ctx)
	a.record(ctx, journal.KindShutdown, map[string]any{"phase": "running", "next_value": a.pub.Value()}, runErr)
	a.logger.Info("shutting down", "next_value", a.pub.Value())
	return runErr
}

func (a *App) runHealthChecks(ctx context.Context) {
	for _, hc := range a.health {
		if err := hc.Check(ctx); err != nil {
			a.logger.Warn("health check failed", "component", hc.Name, "error", err)
			continue
		}
		a.logger.Debug("health check passed", "component", hc.Name)
	}
}

// record writes a lifecycle event when a journal is configured. Journal
// failures are logged and never affect the publish path.
func (a *App) record(ctx context.Context, kind journal.Kind, detail map[string]any, cause error) {
	if a.journal == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := a.journal.Record(rctx, kind, detail, cause); err != nil {
		a.logger.Warn("journal write failed", "kind", string(kind), "error", err)
	}
}
