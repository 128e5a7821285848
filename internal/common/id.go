package common

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// orgIDPattern matches the numeric organization ID in a Yandex Maps listing
// URL, e.g. https://yandex.ru/maps/org/italy/1248026929/reviews/
var orgIDPattern = regexp.MustCompile(`/org/[^/]+/(\d+)`)

// NewTaskID generates a unique task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// ExtractTargetID derives the stable target identifier from a listing URL.
// Different URL variants for the same listing (with or without /reviews/,
// trailing slashes, query strings) yield the same ID. Returns "" when the
// URL does not reference an organization.
func ExtractTargetID(url string) string {
	matches := orgIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// FallbackReviewID derives a stable review key from immutable review fields
// for records the worker delivered without an ID. Re-ingesting the same
// logical review always produces the same key.
func FallbackReviewID(author, text string) string {
	sum := md5.Sum([]byte(author + text))
	return "r_" + hex.EncodeToString(sum[:])
}

// NormalizeReviewsURL rewrites a listing URL to its /reviews/ page,
// which is where both the worker and the quick probe start.
func NormalizeReviewsURL(url string) string {
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/reviews")
	return url + "/reviews/"
}
