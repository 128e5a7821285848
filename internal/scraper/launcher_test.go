package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
)

func testScraperConfig(command, script string) *common.ScraperConfig {
	return &common.ScraperConfig{
		Command:        command,
		Script:         script,
		BatchPrefix:    "batch",
		TerminateGrace: 500 * time.Millisecond,
	}
}

func TestLaunchClearsStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "batch_page_1.json", `{"page":1}`)
	writeFile(t, dir, "batch_meta.json", `{"is_complete":true}`)

	launcher := NewLauncher(testScraperConfig("/bin/true", ""), arbor.NewLogger())
	proc, err := launcher.Launch(context.Background(), "https://example.test/org/x/42/", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer proc.Terminate()

	if _, err := os.Stat(filepath.Join(dir, "batch_page_1.json")); !os.IsNotExist(err) {
		t.Error("stale page artifact survived launch")
	}
	if _, err := os.Stat(filepath.Join(dir, "batch_meta.json")); !os.IsNotExist(err) {
		t.Error("stale meta artifact survived launch")
	}
	if _, err := os.Stat(filepath.Join(dir, "worker.log")); err != nil {
		t.Error("worker log not created")
	}
}

func TestIsAliveReflectsExit(t *testing.T) {
	dir := t.TempDir()
	launcher := NewLauncher(testScraperConfig("/bin/sh", "-c"), arbor.NewLogger())

	// The URL argument slot carries the shell command under -c
	proc, err := launcher.Launch(context.Background(), "exit 0", dir)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for proc.IsAlive() {
		if time.Now().After(deadline) {
			t.Fatal("worker never reported exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTerminateStopsRunningWorker(t *testing.T) {
	dir := t.TempDir()
	launcher := NewLauncher(testScraperConfig("/bin/sh", "-c"), arbor.NewLogger())

	proc, err := launcher.Launch(context.Background(), "sleep 30", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !proc.IsAlive() {
		t.Fatal("worker should be alive right after launch")
	}

	done := make(chan struct{})
	go func() {
		proc.Terminate()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("terminate did not return")
	}
	if proc.IsAlive() {
		t.Error("worker still alive after terminate")
	}

	// Second terminate on a dead worker is a no-op
	proc.Terminate()
}

func TestTerminateKillsIgnoringSigterm(t *testing.T) {
	dir := t.TempDir()
	launcher := NewLauncher(testScraperConfig("/bin/sh", "-c"), arbor.NewLogger())

	proc, err := launcher.Launch(context.Background(), "trap '' TERM; sleep 30", dir)
	if err != nil {
		t.Fatal(err)
	}

	// Give the shell a moment to install the trap
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	proc.Terminate()
	if proc.IsAlive() {
		t.Error("worker survived SIGKILL escalation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("terminate took too long: %v", elapsed)
	}
}

func TestLaunchFailsForMissingCommand(t *testing.T) {
	dir := t.TempDir()
	launcher := NewLauncher(testScraperConfig("/nonexistent/worker-binary", ""), arbor.NewLogger())

	if _, err := launcher.Launch(context.Background(), "https://example.test/org/x/42/", dir); err == nil {
		t.Fatal("expected launch to fail for a missing command")
	}
}
