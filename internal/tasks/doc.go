// Package tasks ingests user-selected files into a notebook with real-time progress reporting.
//
// # Pipeline
//
// For every file handed to [Coordinator.Submit]:
//
//  1. [Validator.Validate] rejects oversize files and unsupported extensions before any network call.
//     Rejections are reported through OnUploadError and never become tracked entries.
//  2. The accepted file gets a tracking key and a [TrackedUpload] in [Uploading].
//  3. Bytes are written to object storage under {owner}/{materialID}.{ext}, reporting progress.
//  4. The object is registered with the backend; the entry moves to [Processing].
//  5. A [Poller] observes the backend status until completed, failed, or the attempt budget is spent.
//  6. Completed entries are reported through OnUploadComplete and evicted after a grace period;
//     failed entries stay until dismissed.
//
// Files run in independent goroutines; one failure never affects another pipeline.
//
// # State
//
// [Transition] is the only way an entry changes. It is a pure function over ([TrackedUpload], [Event])
// and rejects anything outside Uploading→Processing→{Completed|Failed} or Uploading→Failed with
// [ErrInvalidTransition]. [Store] applies transitions under a mutex and guarantees a single poll loop per
// entry.
//
// # Progress Reporting
//
// The optional Updates channel receives a [ProgressUpdate] for every change. Updates use select with
// default to prevent blocking.
//
// # History
//
// The optional [Recorder] receives entries on creation and on each state change. Recording errors are
// logged and ignored so that persistence never disrupts an upload.
package tasks
