package models

// Batch artifact payloads written by the external worker into the drop
// directory. The worker may rewrite an artifact in place as it accumulates
// more records; the file's modification time is the change marker.

// BatchReview is one review record as it appears in a batch page file
type BatchReview struct {
	ID          string `json:"id"`
	ReviewID    string `json:"review_id"` // Legacy alias for ID, some worker revisions use it
	Author      string `json:"author"`
	Text        string `json:"text"`
	Rating      int    `json:"rating"`
	PublishedAt string `json:"published_at"`
}

// BatchPage is the payload of a {prefix}_page_{n}.json artifact
type BatchPage struct {
	CachedAt string        `json:"cached_at"`
	Page     int           `json:"page"`
	PerPage  int           `json:"per_page"`
	Reviews  []BatchReview `json:"reviews"`
}

// BatchOrganization is the target snapshot carried by the meta artifact
type BatchOrganization struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// BatchMeta is the payload of the {prefix}_meta.json artifact. The worker
// overwrites it periodically; IsComplete signals a natural end of scrape.
type BatchMeta struct {
	CachedAt      string             `json:"cached_at"`
	Organization  *BatchOrganization `json:"organization"`
	TotalExpected int                `json:"total_expected"`
	TotalParsed   int                `json:"total_parsed"`
	TotalPages    int                `json:"total_pages"`
	Phase         string             `json:"phase,omitempty"`
	IsComplete    bool               `json:"is_complete"`
}
