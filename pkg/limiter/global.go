package limiter

import "sync"

// The package-level manager backs callers that share one set of budgets
// across the process, typically a single CLI run.
var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the shared process-wide Manager
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// Initialize configures the shared manager's budgets. Only the first call
// has any effect; later calls are no-ops.
func Initialize(budgets map[string]int) bool {
	return Default().Initialize(budgets)
}
