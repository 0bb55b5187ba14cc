// Package conversation implements the dispatch gateway between user messages
// and asynchronous agent runs.
//
// # Registry
//
// Registry.Resolve turns a chat ID into the configuration a dispatch needs:
// title, module name, and settings, with defaulting applied (empty settings
// become an empty mapping, a chat without a module yields an empty module
// name that serializes as an omitted field).
//
// # Service
//
// Service.SendMessage is the pipeline's write path:
//
//  1. Resolve the chat (NotFound aborts with no effect)
//  2. Append the user_input event — the durability point
//  3. Re-read the full ordered history from the store
//  4. Build the payload {message, history, settings, chatId, module}
//  5. Submit to the dispatcher (accept-and-return)
//  6. Return the persisted user event
//
// Steps 2 and 5 fail independently by design: a rejected dispatch leaves the
// recorded event in place and surfaces ErrDispatchRejected so the caller can
// retry the dispatch (RetryDispatch) without re-sending the message. There is
// no automatic retry loop and no transactional coupling between storage and
// job submission.
//
// The event log is the sole source of truth for history. No cached or
// derived transcript is ever passed to the worker.
package conversation
