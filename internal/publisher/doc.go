// Package publisher implements the periodic Int32 publisher.
//
// A Periodic runs the seven-stage middleware setup pipeline (transport,
// support, node, publisher, timer, executor, executor_add_timer), then
// drives the executor in fixed slices until its context is cancelled. On
// every timer fire it publishes the current counter value and increments it;
// the counter wraps from 2147483647 to -2147483648.
//
// Setup failures follow the configured SetupPolicy. FailFast returns a
// *StageError naming the first failed stage. BestEffort logs each failure and
// keeps going; handles that could not be created stay nil and the stages
// that depend on them fail with middleware.ErrNotInitialized.
//
// Usage:
//
//	p := publisher.New(cfg, rt, binding)
//	p.SetLogger(logger)
//	if err := p.Setup(ctx); err != nil {
//	    return err
//	}
//	defer p.Close()
//	return p.Run(ctx)
package publisher
