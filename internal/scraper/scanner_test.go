package scraper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanReadsNewPagesOnce(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	writeFile(t, dir, "batch_page_1.json", `{"cached_at":"2025-03-12T10:00:00Z","page":1,"per_page":2,"reviews":[
		{"id":"r1","author":"A","text":"first","rating":5,"published_at":"12 марта"},
		{"id":"r2","author":"B","text":"second","rating":4,"published_at":"11 марта"}]}`)

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(result.Reviews))
	}
	if result.PagesSeen != 1 {
		t.Errorf("pages seen = %d, want 1", result.PagesSeen)
	}

	// Unchanged file must not be re-read
	result, err = scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 0 {
		t.Errorf("unchanged page re-read: got %d reviews", len(result.Reviews))
	}
}

func TestScanPicksUpModifiedPage(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	path := writeFile(t, dir, "batch_page_1.json", `{"page":1,"reviews":[{"id":"r1","author":"A","text":"x","rating":3}]}`)
	if _, err := scanner.Scan(dir, seen); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "batch_page_1.json", `{"page":1,"reviews":[{"id":"r1","author":"A","text":"x","rating":3},{"id":"r3","author":"C","text":"y","rating":5}]}`)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 2 {
		t.Errorf("expected rewritten page to be re-read, got %d reviews", len(result.Reviews))
	}
}

func TestScanSkipsPartialWriteUntilParseable(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	writeFile(t, dir, "batch_page_1.json", `{"page":1,"reviews":[{"id":"r1","aut`)

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 0 {
		t.Error("partial file should yield no reviews")
	}
	if result.PagesSeen != 0 {
		t.Error("partial file must not be marked as seen")
	}

	writeFile(t, dir, "batch_page_1.json", `{"page":1,"reviews":[{"id":"r1","author":"A","text":"x","rating":3}]}`)
	result, err = scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 1 {
		t.Errorf("completed file not picked up, got %d reviews", len(result.Reviews))
	}
}

func TestScanReturnsMetaWhenPresent(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if result.Meta != nil {
		t.Error("meta should be nil before the worker writes it")
	}

	writeFile(t, dir, "batch_meta.json", `{"cached_at":"2025-03-12T10:05:00Z",
		"organization":{"name":"Test Cafe","rating":4.6,"review_count":120},
		"total_expected":120,"total_parsed":100,"total_pages":2,"is_complete":true}`)

	result, err = scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if result.Meta == nil {
		t.Fatal("meta file not read")
	}
	if !result.Meta.IsComplete || result.Meta.TotalParsed != 100 {
		t.Errorf("meta fields wrong: %+v", result.Meta)
	}
	if result.Meta.Organization == nil || result.Meta.Organization.ReviewCount != 120 {
		t.Error("organization block not decoded")
	}
}

func TestScanOrdersPagesNumerically(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	writeFile(t, dir, "batch_page_10.json", `{"page":10,"reviews":[{"id":"late","author":"A","text":"x","rating":3}]}`)
	writeFile(t, dir, "batch_page_2.json", `{"page":2,"reviews":[{"id":"early","author":"B","text":"y","rating":4}]}`)

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(result.Reviews))
	}
	if result.Reviews[0].ID != "early" || result.Reviews[1].ID != "late" {
		t.Error("pages not read in numeric order")
	}
}

func TestScanIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	scanner := NewScanner("batch", arbor.NewLogger())
	seen := make(map[string]time.Time)

	writeFile(t, dir, "worker.log", "starting up")
	writeFile(t, dir, "other_page_1.json", `{"page":1,"reviews":[{"id":"r1"}]}`)

	result, err := scanner.Scan(dir, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Reviews) != 0 || result.PagesSeen != 0 {
		t.Errorf("files outside the prefix were scanned: %+v", result)
	}
}
