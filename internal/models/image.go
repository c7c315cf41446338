package models

import "time"

// Sample is a JPEG snapshot of a redacted frame kept for review.
type Sample struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Filename   string    `json:"filename"`
	FrameIndex int64     `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
	FilePath   string    `json:"filepath"`
	FileSize   int64     `json:"filesize"`
	Regions    []Region  `json:"regions,omitempty"`
}

// SampleFilter narrows sample listings.
type SampleFilter struct {
	RunID  string
	Limit  int
	Offset int
}
