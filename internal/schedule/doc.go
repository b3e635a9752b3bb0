// Package schedule serializes fetch-triggering tasks under a courtesy
// dispatch delay.
//
// The rate-limited Dispatcher pops queued tasks one at a time, invokes the
// task, waits a fixed delay, and dispatches the next task. It deliberately
// does NOT wait for whatever asynchronous operation the task started: the
// delay bounds the rate at which fetches are initiated, not the number of
// fetches concurrently in flight. A slow remote service can therefore leave
// several fetches outstanding at once. That dispatch-only contract is
// observable behavior and is preserved on purpose - do not "fix" it by
// awaiting task completion.
//
// The Immediate scheduler is used when records are replayed from the local
// archive: there is no remote call to pace, so tasks run synchronously with
// no queue.
package schedule
