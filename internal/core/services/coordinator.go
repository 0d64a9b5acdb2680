package services

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// Ensure Coordinator implements the interface.
var _ driving.Initializer = (*Coordinator)(nil)

// Progress status texts broadcast by the coordinator.
const (
	statusIdle      = "idle"
	statusPreparing = "preparing search index"
	statusLoading   = "loading corpus"
	statusReady     = "ready"
	statusFailed    = "initialization failed"
)

// BootstrapFunc performs the expensive one-time setup: open the store,
// enable vector support, and load the corpus, reporting row progress.
// Supplied by the composition root so the coordinator stays a pure
// state machine.
type BootstrapFunc func(ctx context.Context, progress ProgressFunc) error

// Coordinator drives store setup and corpus loading exactly once per
// session and broadcasts progress and completion to any number of
// consumers, regardless of when they register.
//
// The state machine is Idle -> Initializing -> {Initialized |
// Idle-on-error}. A failed run returns to Idle so a later Start may
// retry; the completion latch is only ever set on success. All state is
// guarded by a mutex: unlike a cooperatively scheduled runtime, Go
// interleaves goroutines preemptively, so the check-then-set idempotency
// guard must hold the lock across both steps.
type Coordinator struct {
	bootstrap BootstrapFunc

	mu       sync.Mutex
	status   domain.InitStatus
	last     domain.Progress
	notified bool
	gen      uint64

	progressListeners   map[string]driving.ProgressListener
	completionListeners []completionEntry
}

// completionEntry tracks a completion listener by function identity so
// re-adding the identical function is a no-op.
type completionEntry struct {
	key uintptr
	fn  driving.CompletionListener
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(bootstrap BootstrapFunc) *Coordinator {
	return &Coordinator{
		bootstrap:         bootstrap,
		last:              domain.Progress{Status: statusIdle},
		progressListeners: make(map[string]driving.ProgressListener),
	}
}

// Start begins initialization unless it is already running or done.
// Only the first caller performs the work; everyone else observes it
// through the progress and completion broadcasts.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.status.IsInitialized || c.status.IsInitializing {
		c.mu.Unlock()
		logger.Debug("Initialization already started, Start is a no-op")
		return
	}
	c.status = domain.InitStatus{IsInitializing: true}
	gen := c.gen
	c.mu.Unlock()

	c.broadcast(gen, domain.Progress{Status: statusPreparing})

	go c.run(ctx, gen)
}

// run executes the bootstrap and settles the state machine. A run
// carries the generation it was started under; when Reset has moved the
// generation on, the run's outcome belongs to an abandoned session and
// is dropped instead of being applied to the fresh one.
func (c *Coordinator) run(ctx context.Context, gen uint64) {
	err := c.bootstrap(ctx, func(loaded, total int) {
		c.broadcast(gen, domain.Progress{Status: statusLoading, Loaded: loaded, Total: total})
	})

	if err != nil {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			logger.Debug("Discarding failure of abandoned initialization run: %v", err)
			return
		}
		logger.Warn("Initialization failed: %v", err)
		c.status = domain.InitStatus{}
		c.mu.Unlock()
		c.broadcast(gen, domain.Progress{Status: statusFailed, Err: err.Error()})
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		logger.Debug("Discarding result of abandoned initialization run")
		return
	}
	c.status = domain.InitStatus{IsInitialized: true, IsDataLoaded: true}
	alreadyNotified := c.notified
	c.notified = true
	listeners := make([]driving.CompletionListener, 0, len(c.completionListeners))
	for _, e := range c.completionListeners {
		listeners = append(listeners, e.fn)
	}
	last := c.last
	c.mu.Unlock()

	c.broadcast(gen, domain.Progress{Status: statusReady, Loaded: last.Loaded, Total: last.Total})

	if !alreadyNotified {
		logger.Debug("Notifying %d completion listeners", len(listeners))
		for _, fn := range listeners {
			fn()
		}
	}
}

// Status returns the current lifecycle snapshot.
func (c *Coordinator) Status() domain.InitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RegisterProgressListener registers fn under id, replacing any
// previous listener with the same id, and immediately delivers the
// current snapshot so late joiners do not miss state.
func (c *Coordinator) RegisterProgressListener(id string, fn driving.ProgressListener) string {
	if id == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	c.progressListeners[id] = fn
	snapshot := c.last
	c.mu.Unlock()

	fn(snapshot)
	return id
}

// UnregisterProgressListener removes a listener by id.
func (c *Coordinator) UnregisterProgressListener(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.progressListeners, id)
}

// AddCompletionListener registers fn for the at-most-once completion
// event and returns its remove function. Adding the identical function
// again is a no-op. When initialization has already completed, fn fires
// asynchronously, still exactly once.
func (c *Coordinator) AddCompletionListener(fn driving.CompletionListener) func() {
	key := reflect.ValueOf(fn).Pointer()

	c.mu.Lock()
	for _, e := range c.completionListeners {
		if e.key == key {
			c.mu.Unlock()
			return func() { c.removeCompletionListener(key) }
		}
	}
	c.completionListeners = append(c.completionListeners, completionEntry{key: key, fn: fn})
	fireNow := c.notified
	c.mu.Unlock()

	if fireNow {
		go fn()
	}

	return func() { c.removeCompletionListener(key) }
}

// removeCompletionListener deletes a listener by function identity.
func (c *Coordinator) removeCompletionListener(key uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.completionListeners {
		if e.key == key {
			c.completionListeners = append(c.completionListeners[:i], c.completionListeners[i+1:]...)
			return
		}
	}
}

// Reset returns the coordinator to its pristine idle state, clearing
// the completion latch and last snapshot. Listener registrations
// survive a reset: a corpus reload is a new session for the same
// consumers, and completion may legitimately fire once more. A run
// still in flight is abandoned; its outcome no longer reaches state or
// listeners.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.status = domain.InitStatus{}
	c.notified = false
	c.last = domain.Progress{Status: statusIdle}
}

// broadcast delivers a progress snapshot to all registered listeners.
// Snapshots from an abandoned run are dropped, and a snapshot
// structurally equal to the previous one is suppressed, bounding
// listener churn under fine-grained updates.
func (c *Coordinator) broadcast(gen uint64, p domain.Progress) {
	c.mu.Lock()
	if c.gen != gen || p.Equal(c.last) {
		c.mu.Unlock()
		return
	}
	c.last = p
	listeners := make([]driving.ProgressListener, 0, len(c.progressListeners))
	for _, fn := range c.progressListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}
