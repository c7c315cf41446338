package dto

// Message types sent to websocket viewers.
const (
	TypeProgress = "progress"
	TypeTerminal = "terminal"
	TypePreview  = "preview"
)

// ProgressMessage reports a progress snapshot or the end of a run.
type ProgressMessage struct {
	Type       string  `json:"type"`
	RunID      string  `json:"run_id"`
	Processed  int64   `json:"processed"`
	Total      int64   `json:"total"`
	Percent    int     `json:"percent"`
	ETA        string  `json:"eta"`
	Throughput float64 `json:"fps"`
	Label      string  `json:"label"`

	// Set on terminal messages only.
	Status     string `json:"status,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	Redacted   int64  `json:"boxes_redacted,omitempty"`
}

// PreviewMessage carries one redacted frame as a base64 JPEG.
type PreviewMessage struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	FrameIndex int64  `json:"frame"`
	Image      string `json:"image"`
}

// SamplesData is a paginated listing of stored samples.
type SamplesData struct {
	Samples     []SampleInfo `json:"samples"`
	Length      int          `json:"length"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
	Limit       int          `json:"pageSize"`
}

// SampleInfo describes one stored sample.
type SampleInfo struct {
	Name       string `json:"name"`
	RunID      string `json:"run_id"`
	FrameIndex int64  `json:"frame"`
	Date       string `json:"date"`
	Size       int64  `json:"size"`
}

// SampleDetails is one sample with the rectangles blurred in it.
type SampleDetails struct {
	SampleInfo
	Regions []RegionInfo `json:"regions"`
}

// RegionInfo is a blurred rectangle in frame pixels.
type RegionInfo struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
