package interfaces

import (
	"context"

	"github.com/ternarybob/recensio/internal/models"
)

// WorkerProcess is a handle to a launched scrape worker. The engine treats
// the worker as an opaque process: it can only check liveness and terminate.
type WorkerProcess interface {
	// PID returns the operating system process ID
	PID() int

	// IsAlive reports whether the process is still running without blocking
	IsAlive() bool

	// Terminate stops the process: graceful signal, short grace interval,
	// then forced kill. Safe to call repeatedly and on already-dead handles.
	Terminate()
}

// WorkerLauncher starts the external scrape worker for a target. This is the
// seam that lets the supervisor be tested with a fake worker writing
// artifacts on a scripted schedule.
type WorkerLauncher interface {
	// Launch clears stale artifacts from workDir and starts the worker
	// bound to the target URL and drop directory
	Launch(ctx context.Context, targetURL, workDir string) (WorkerProcess, error)
}

// Prober is the fast, bounded-latency metadata fetch used to seed a task
// before the worker produces its first meta artifact. Implementations fail
// soft: any error yields a nil snapshot, never a blocked task creation.
type Prober interface {
	Fetch(ctx context.Context, url string) *models.TargetMeta
}

// SchedulerService triggers periodic re-scrapes of known targets
type SchedulerService interface {
	Start() error
	Stop() error
}
