package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
)

// Launcher starts the external review worker process. The worker is treated
// as an opaque black box: it receives a target URL, a drop directory and a
// batch prefix, and is expected to write batch artifacts until it exits or
// is terminated.
type Launcher struct {
	config *common.ScraperConfig
	logger arbor.ILogger
}

// NewLauncher creates a new worker launcher
func NewLauncher(config *common.ScraperConfig, logger arbor.ILogger) *Launcher {
	return &Launcher{
		config: config,
		logger: logger,
	}
}

// Launch clears stale artifacts from a previous run, starts the worker and
// returns a handle for liveness checks and termination. Worker output goes
// to worker.log in the drop directory so launch failures are diagnosable.
func (l *Launcher) Launch(ctx context.Context, targetURL, workDir string) (interfaces.WorkerProcess, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	// Stale batch/meta files from an earlier run must not be re-ingested as
	// fresh data. Already-ingested reviews live in the result store and are
	// unaffected by this cleanup.
	l.clearArtifacts(workDir)

	logPath := filepath.Join(workDir, "worker.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker log: %w", err)
	}

	cmd := exec.Command(l.config.Command, l.config.Script, targetURL, workDir, l.config.BatchPrefix)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start worker %s: %w", l.config.Command, err)
	}

	handle := &workerHandle{
		cmd:    cmd,
		done:   make(chan struct{}),
		grace:  l.config.TerminateGrace,
		logger: l.logger,
	}

	go func() {
		handle.waitErr = cmd.Wait()
		logFile.Close()
		close(handle.done)
	}()

	l.logger.Info().
		Int("pid", cmd.Process.Pid).
		Str("target_url", targetURL).
		Str("work_dir", workDir).
		Msg("Worker started")

	return handle, nil
}

// clearArtifacts removes batch and meta files left over from a previous run
func (l *Launcher) clearArtifacts(workDir string) {
	patterns := []string{
		filepath.Join(workDir, l.config.BatchPrefix+"_page_*.json"),
		filepath.Join(workDir, l.config.BatchPrefix+"_meta.json"),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				l.logger.Warn().Err(err).Str("file", match).Msg("Failed to remove stale artifact")
			}
		}
	}
}

// workerHandle implements interfaces.WorkerProcess over os/exec
type workerHandle struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	grace   time.Duration
	logger  arbor.ILogger
}

// PID returns the worker's process ID
func (h *workerHandle) PID() int {
	return h.cmd.Process.Pid
}

// IsAlive reports whether the worker is still running. Non-blocking, safe
// to poll every few seconds.
func (h *workerHandle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Terminate sends SIGTERM, waits the grace interval, then SIGKILLs.
// Idempotent: calling it on an already-dead worker is a no-op, and signal
// errors on a vanished process are ignored.
func (h *workerHandle) Terminate() {
	if !h.IsAlive() {
		return
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process already gone; the wait goroutine will close done
		return
	}

	select {
	case <-h.done:
		return
	case <-time.After(h.grace):
	}

	h.logger.Warn().Int("pid", h.cmd.Process.Pid).Msg("Worker did not exit after SIGTERM, killing")
	_ = h.cmd.Process.Kill()
	<-h.done
}
