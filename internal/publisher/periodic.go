package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/wifipub/internal/middleware"
)

// executorHandles is the executor capacity: the single publish timer.
const executorHandles = 1

// Config holds the periodic publisher settings.
type Config struct {
	NodeName  string
	Namespace string
	Topic     string

	// Period is the publish timer period.
	Period time.Duration

	// SpinTimeout is the time slice handed to the executor per loop iteration.
	SpinTimeout time.Duration

	// YieldInterval is the pause between executor slices.
	YieldInterval time.Duration

	Policy SetupPolicy

	// TypeSupport describes the published message. Defaults to Int32 over CDR.
	TypeSupport middleware.TypeSupport
}

// Logger defines the logging interface for the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SampleSink receives one record per publish attempt. err is nil when the
// session accepted the message.
type SampleSink interface {
	RecordPublish(topic string, value int32, err error)
}

// Periodic publishes an incrementing int32 once per timer period.
//
// Setup, Run and Close are called in that order from one goroutine. The
// counter is only written by the timer callback, which runs inside Run.
type Periodic struct {
	cfg     Config
	rt      *middleware.Runtime
	binding middleware.TransportBinding

	logger  Logger
	onStage func(stage Stage, err error)
	sink    SampleSink

	support  *middleware.Support
	node     *middleware.Node
	pub      *middleware.Publisher
	timer    *middleware.Timer
	executor *middleware.Executor

	// data is the next value to publish.
	data atomic.Int32
}

// New creates a publisher that will register binding with rt during Setup.
func New(cfg Config, rt *middleware.Runtime, binding middleware.TransportBinding) *Periodic {
	if cfg.TypeSupport == nil {
		cfg.TypeSupport = middleware.Int32Support(middleware.EncodingCDR)
	}
	return &Periodic{
		cfg:     cfg,
		rt:      rt,
		binding: binding,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *Periodic) SetLogger(logger Logger) {
	p.logger = logger
}

// SetOnStage sets a callback invoked after every setup stage with its result.
func (p *Periodic) SetOnStage(callback func(stage Stage, err error)) {
	p.onStage = callback
}

// SetSampleSink sets the sink that receives every publish attempt.
func (p *Periodic) SetSampleSink(sink SampleSink) {
	p.sink = sink
}

// Value returns the value the next timer fire will publish.
func (p *Periodic) Value() int32 {
	return p.data.Load()
}

// Setup runs the middleware setup pipeline:
//
//  1. register the transport binding
//  2. initialise the support context (opens the session)
//  3. create the node
//  4. create the Int32 publisher on the topic
//  5. create the publish timer
//  6. create the executor
//  7. add the timer to the executor
//
// Under FailFast the first failure is returned as a *StageError. Under
// BestEffort failures are logged, later stages run against the missing
// handles, and Setup returns nil.
func (p *Periodic) Setup(ctx context.Context) error {
	stages := []struct {
		stage Stage
		run   func() error
	}{
		{StageTransport, func() error {
			return p.rt.SetCustomTransport(p.binding)
		}},
		{StageSupport, func() (err error) {
			p.support, err = p.rt.InitSupport(ctx)
			return err
		}},
		{StageNode, func() (err error) {
			p.node, err = p.support.InitNode(p.cfg.NodeName, p.cfg.Namespace)
			return err
		}},
		{StagePublisher, func() (err error) {
			p.pub, err = p.node.InitPublisher(p.cfg.TypeSupport, p.cfg.Topic)
			return err
		}},
		{StageTimer, func() (err error) {
			p.timer, err = p.support.InitTimer(p.cfg.Period, p.OnTimerFire)
			return err
		}},
		{StageExecutor, func() (err error) {
			p.executor, err = p.support.InitExecutor(executorHandles)
			return err
		}},
		{StageExecutorAddTimer, func() error {
			return p.executor.AddTimer(p.timer)
		}},
	}

	failed := 0
	for _, s := range stages {
		err := s.run()
		if p.onStage != nil {
			p.onStage(s.stage, err)
		}

		if err == nil {
			p.logger.Debug("setup stage complete", "stage", s.stage.String())
			continue
		}

		if p.cfg.Policy == FailFast {
			p.logger.Error("setup stage failed, aborting", "stage", s.stage.String(), "error", err)
			return &StageError{Stage: s.stage, Err: err}
		}
		failed++
		p.logger.Error("setup stage failed, continuing", "stage", s.stage.String(), "error", err)
	}

	if failed > 0 {
		p.logger.Warn("publisher set up with failed stages", "failed_stages", failed)
		return nil
	}

	p.logger.Info("publisher armed",
		"node", p.node.FullyQualifiedName(),
		"topic", p.pub.TopicName(),
		"type", p.pub.TypeName(),
		"period", p.cfg.Period,
	)
	return nil
}

// OnTimerFire publishes the current counter value and advances the counter.
//
// A nil timer does nothing. A failed publish is logged and the counter still
// advances; the next period proceeds normally.
func (p *Periodic) OnTimerFire(ctx context.Context, t *middleware.Timer, _ time.Duration) {
	if t == nil {
		return
	}

	value := p.data.Load()
	err := p.pub.Publish(ctx, middleware.Int32{Data: value})
	if err != nil {
		p.logger.Warn("publish failed, continuing", "topic", p.cfg.Topic, "value", value, "error", err)
	} else {
		p.logger.Debug("published", "topic", p.cfg.Topic, "value", value)
	}

	if p.sink != nil {
		p.sink.RecordPublish(p.cfg.Topic, value, err)
	}

	p.data.Add(1)
}

// Run gives the executor a SpinTimeout slice, yields for YieldInterval, and
// repeats until ctx is done. It always returns nil; cancellation is the only
// way out of the loop.
func (p *Periodic) Run(ctx context.Context) error {
	clock := p.rt.Clock()

	p.logger.Info("run loop started",
		"spin_timeout", p.cfg.SpinTimeout,
		"yield_interval", p.cfg.YieldInterval,
	)

	for ctx.Err() == nil {
		if err := p.executor.SpinSome(ctx, p.cfg.SpinTimeout); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Debug("executor spin failed", "error", err)
			// Keep the loop cadence when there is no executor to wait on.
			_ = clock.Sleep(ctx, p.cfg.SpinTimeout)
		}

		if err := clock.Sleep(ctx, p.cfg.YieldInterval); err != nil {
			break
		}
	}

	p.logger.Info("run loop stopped", "next_value", p.Value())
	return nil
}

// Close releases the middleware handles in reverse creation order: timer,
// publisher, node, then the support context (which closes the session).
// Handles that were never created are skipped.
func (p *Periodic) Close() error {
	var errs []error

	if p.timer != nil {
		_ = p.timer.Fini()
	}
	if p.pub != nil {
		if err := p.pub.Fini(); err != nil {
			errs = append(errs, fmt.Errorf("publisher fini: %w", err))
		}
	}
	if p.node != nil {
		if err := p.node.Fini(); err != nil {
			errs = append(errs, fmt.Errorf("node fini: %w", err))
		}
	}
	if p.support != nil {
		if err := p.support.Fini(); err != nil {
			errs = append(errs, fmt.Errorf("support fini: %w", err))
		}
	}

	return errors.Join(errs...)
}
