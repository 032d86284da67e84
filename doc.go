// Package simtask provides a work-stealing task scheduler for real-time
// simulation stepping.
//
// A fixed-size pool of workers, each with its own double-ended task queue,
// executes the per-timestep work of a simulation. The goroutine that drives the
// simulation is itself a worker (the main worker): it submits root tasks and then
// helps executing queued work until the awaited Status reports completion. Tasks
// may spawn children while they run; idle workers steal the oldest queued tasks of
// their peers.
//
// # Quick Start
//
// Initialize the process-wide scheduler at application startup:
//
//	simtask.Init(0) // one worker per physical core
//	defer simtask.Stop()
//
// Submit work from the main context and wait by helping:
//
//	ctx := simtask.MainContext()
//	status := simtask.NewStatus()
//	for _, body := range bodies {
//		body := body
//		simtask.Submit(ctx, status, func(ctx context.Context) error {
//			return body.Integrate(ctx, dt)
//		})
//	}
//	simtask.WorkUntilDone(ctx, status)
//	if err := status.Err(); err != nil {
//		// handle task failures
//	}
//
// # Key Concepts
//
// Status: completion counter shared by a root task and everything it spawns.
// It is busy until every task of the subgraph ran.
//
// Worker: per-thread execution context. The calling context carries it, so
// Submit, Spawn and WorkUntilDone always operate on the worker that calls them.
//
// Scheduler: owns the workers. One process-wide instance is reachable through
// the package functions; independent instances can be created with
// core.NewScheduler.
//
// # Thread Safety
//
// Submit, Spawn and WorkUntilDone are safe from any worker context. Init,
// Start and Stop are lifecycle operations for the driving goroutine and must not
// race with outstanding work.
package simtask
