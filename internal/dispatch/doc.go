// Package dispatch hands agent work to a task-execution backend.
//
// A Payload bundles the new message, the full ordered event history, the
// chat's settings, the chat ID, and the resolved module name. Submit means
// "accepted for asynchronous processing": the gateway never waits on the
// worker, never retries on its behalf, and has no cancellation hook into a
// running worker. A run ceiling travels with each job and is enforced by the
// backend.
//
// Two backends ship:
//
//   - HTTPDispatcher: POSTs a run-agent job to a remote task queue API.
//   - ExecDispatcher: spawns the worker as a local subprocess, payload on
//     stdin (never argv, which would truncate large histories).
//
// Both return errors wrapping ErrRejected when the job is not accepted, so
// callers can distinguish "message recorded but not dispatched" from every
// other failure.
package dispatch
