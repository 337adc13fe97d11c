// Package tracker records best-effort progress for long-running asynchronous
// jobs so that polling clients can render completion percentages without a
// database.
//
// A Tracker exclusively owns its records. Records are created by the first
// Report for a job ID, updated by later reports and completed-count updates,
// and evicted a fixed retention period after reaching a terminal status
// (completed or error). Expiry is evaluated lazily on every access and
// eagerly by Sweep, which a Janitor runs on a schedule.
//
// State lives in process memory only: it is lost on restart and is not shared
// between instances.
package tracker
