// Package middleware models the messaging middleware client used by the
// periodic publisher.
//
// Setup follows a fixed order, each step returning a handle or an error:
//
//	rt := middleware.NewRuntime(factory)
//	rt.SetCustomTransport(middleware.DefaultTransport(params)) // 1. transport binding
//	support, _ := rt.InitSupport(ctx)                            // 2. support context (opens session)
//	node, _ := support.InitNode("int32_publisher", "")           // 3. node
//	pub, _ := node.InitPublisher(middleware.Int32Support(middleware.EncodingCDR), "int32_publisher")
//	timer, _ := support.InitTimer(time.Second, callback)         // 5. timer
//	exec, _ := support.InitExecutor(1)                           // 6. executor
//	exec.AddTimer(timer)
//
//	for {
//	    exec.SpinSome(ctx, 100*time.Millisecond)
//	}
//
// Every handle method tolerates a nil receiver and returns ErrNotInitialized,
// so a pipeline that keeps going after a failed stage degrades into logged
// errors instead of panics.
//
// # Sessions
//
// The Session interface is implemented over MQTT by the infrastructure/mqtt
// (3.1.1) and infrastructure/mqtt5 packages. A SessionFactory receives the
// DialFunc derived from the registered TransportBinding and must run its
// protocol over that connection.
//
// # Time
//
// Timers and executors read time from a Clock. SystemClock is the default;
// ManualClock advances only when slept on, which makes scheduler behaviour
// deterministic in tests and simulations.
package middleware
