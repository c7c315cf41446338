package models

// Box is a raw detection in frame pixel space as produced by the model.
// Coordinates may lie outside the frame or be degenerate.
type Box struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Score float64 `json:"score"`
}

// Region is a redacted rectangle stored alongside a preview sample.
type Region struct {
	ID       int64 `json:"id"`
	SampleID int64 `json:"sample_id"`
	X        int   `json:"x"`
	Y        int   `json:"y"`
	Width    int   `json:"width"`
	Height   int   `json:"height"`
}
