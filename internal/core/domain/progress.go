package domain

// Progress is a snapshot of initialization progress, broadcast to
// registered listeners. Snapshots are value types so listeners can hold
// them across the coordinator's state transitions.
type Progress struct {
	// Status is a short human-readable description of the current step.
	Status string

	// Loaded is the number of corpus rows inserted so far.
	Loaded int

	// Total is the total number of corpus rows, or 0 before the corpus
	// has been fetched.
	Total int

	// Err is a non-empty error message when initialization failed.
	Err string
}

// Equal reports structural equality. The coordinator suppresses a
// broadcast when the new snapshot equals the previous one, bounding
// listener churn under fine-grained progress updates.
func (p Progress) Equal(other Progress) bool {
	return p == other
}

// InitStatus describes the coordinator's current lifecycle phase.
// The three flags are mutually exclusive transitional states.
type InitStatus struct {
	IsInitialized  bool
	IsInitializing bool
	IsDataLoaded   bool
}

// ModelState is the result of probing the LLM capability.
type ModelState int

const (
	// ModelUnavailable means no LLM capability exists in this environment.
	ModelUnavailable ModelState = iota

	// ModelNeedsDownload means the capability exists but the model must be
	// pulled before it can answer prompts.
	ModelNeedsDownload

	// ModelReady means the model can answer prompts now.
	ModelReady
)

// String returns a human-readable state name.
func (s ModelState) String() string {
	switch s {
	case ModelReady:
		return "ready"
	case ModelNeedsDownload:
		return "needs download"
	default:
		return "unavailable"
	}
}
