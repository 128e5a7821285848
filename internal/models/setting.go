package models

import "time"

// Setting keys used by the application
const (
	SettingSourceURL = "source_url" // The listing URL reviews are scraped from
)

// Setting is a persisted key/value pair
type Setting struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
