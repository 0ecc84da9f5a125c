package queue

import (
	"encoding/json"
	"time"

	"reframe/internal/ffmpeg"
	"reframe/internal/transcode"
)

// Record is one submitted job as persisted by the store.
type Record struct {
	ID            string           `json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Status        transcode.Status `json:"status"`
	InputPath     string           `json:"input_path"`
	OutputPath    string           `json:"output_path"`
	Format        string           `json:"format"`
	RequestJSON   string           `json:"-"`
	Percent       float64          `json:"percent"`
	CurrentFPS    float64          `json:"current_fps"`
	TimeRemaining string           `json:"time_remaining,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// Request decodes the originally submitted transcode request.
func (r *Record) Request() (ffmpeg.Request, error) {
	var req ffmpeg.Request
	err := json.Unmarshal([]byte(r.RequestJSON), &req)
	return req, err
}
