package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/models"
)

// ScanResult is what one pass over the drop directory produced
type ScanResult struct {
	// Reviews from batch files that are new or changed since the last scan
	Reviews []models.BatchReview
	// Meta is the worker's meta artifact, nil until the worker writes it
	Meta *models.BatchMeta
	// PagesSeen is the cumulative number of distinct page files observed
	PagesSeen int
}

// Scanner incrementally reads batch artifacts out of a drop directory.
// Callers own the seen map and pass it back on every scan so re-reads only
// happen when a file's mtime moves forward.
type Scanner struct {
	prefix string
	logger arbor.ILogger
}

// NewScanner creates a scanner for artifacts named with the given prefix
func NewScanner(prefix string, logger arbor.ILogger) *Scanner {
	return &Scanner{
		prefix: prefix,
		logger: logger,
	}
}

// Scan reads new or modified page files and the meta file if present.
// A page that fails to parse is treated as not yet fully written: it is
// left out of the seen map and picked up again on the next poll. The meta
// file is re-read on every scan since the worker rewrites it as it goes.
func (s *Scanner) Scan(workDir string, seen map[string]time.Time) (*ScanResult, error) {
	result := &ScanResult{}

	pattern := filepath.Join(workDir, s.prefix+"_page_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return s.pageNumber(files[i]) < s.pageNumber(files[j])
	})

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		name := filepath.Base(file)
		if last, ok := seen[name]; ok && !info.ModTime().After(last) {
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to read batch file")
			continue
		}

		var page models.BatchPage
		if err := json.Unmarshal(data, &page); err != nil {
			// Likely a partial write; retry on the next poll
			s.logger.Debug().Str("file", name).Msg("Batch file not yet parseable")
			continue
		}

		seen[name] = info.ModTime()
		result.Reviews = append(result.Reviews, page.Reviews...)
	}

	result.PagesSeen = len(seen)

	metaPath := filepath.Join(workDir, s.prefix+"_meta.json")
	if data, err := os.ReadFile(metaPath); err == nil {
		var meta models.BatchMeta
		if err := json.Unmarshal(data, &meta); err == nil {
			result.Meta = &meta
		} else {
			s.logger.Debug().Msg("Meta file not yet parseable")
		}
	}

	return result, nil
}

// pageNumber extracts the page index from a batch file path for ordering.
// Unparseable names sort last.
func (s *Scanner) pageNumber(path string) int {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, s.prefix+"_page_")
	name = strings.TrimSuffix(name, ".json")
	n, err := strconv.Atoi(name)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
