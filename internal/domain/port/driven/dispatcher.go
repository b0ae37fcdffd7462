package driven

import "context"

// TaskFunc is one unit of work handed to the dispatcher.
type TaskFunc func(ctx context.Context) error

// TaskDispatcher is the durable work dispatcher collaborator: at-least-once
// delivery, bounded retries with exponential backoff, and per-key
// serialization so that two concurrent dispatches for the same repository
// never run the underlying Git operation at the same time. Every accepted
// dispatch eventually executes; same-key dispatches queue, they are not
// dropped or merged.
//
// Dispatch returns an opaque handle for correlation (recorded on SyncTask
// records) as soon as the work is accepted.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, key string, fn TaskFunc) (handle string, err error)
}
