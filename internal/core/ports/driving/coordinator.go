package driving

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// ProgressListener receives initialization progress snapshots.
type ProgressListener func(domain.Progress)

// CompletionListener is notified exactly once when initialization has
// completed successfully.
type CompletionListener func()

// Initializer orchestrates one-time store setup and corpus loading,
// broadcasting progress and completion to any number of consumers
// regardless of their registration timing.
type Initializer interface {
	// Start begins initialization. Idempotent: calls while initializing
	// or already initialized are no-ops, and concurrent callers share a
	// single in-flight run.
	Start(ctx context.Context)

	// Status returns the current lifecycle snapshot.
	Status() domain.InitStatus

	// RegisterProgressListener registers a listener under the given id,
	// replacing any previous listener with the same id. An empty id is
	// assigned a generated one. The current snapshot is delivered
	// immediately so late joiners do not miss state. Returns the
	// effective id.
	RegisterProgressListener(id string, fn ProgressListener) string

	// UnregisterProgressListener removes a listener by id.
	UnregisterProgressListener(id string)

	// AddCompletionListener registers a completion listener and returns
	// its remove function. Re-adding the identical function is a no-op.
	// If initialization already completed, the listener fires
	// asynchronously, still exactly once.
	AddCompletionListener(fn CompletionListener) (remove func())

	// Reset returns the coordinator to its pristine state, reinitializing
	// every latch. Intended for test isolation and corpus reloads.
	Reset()
}
