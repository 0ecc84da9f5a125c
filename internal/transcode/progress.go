package transcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"reframe/internal/ffmpeg"
)

// TimeRemainingUnknown is emitted while no usable elapsed-time marker has
// arrived, so a UI never renders a stale or nonsensical figure.
const TimeRemainingUnknown = "computing..."

// ProgressEvent is the normalized, UI-consumable view of one encoder
// notification. Percent is always within [0, 100]; consumers must not assume
// the sequence is monotonic, values are forwarded as received.
type ProgressEvent struct {
	Percent       float64 `json:"percent"`
	CurrentFPS    float64 `json:"current_fps"`
	TimeRemaining string  `json:"time_remaining"`
}

// ParseProgress projects a raw notification onto a ProgressEvent. Lossy by
// design: no smoothing, no extrapolation, clamping and defaulting only.
func ParseProgress(n ffmpeg.Notification) ProgressEvent {
	event := ProgressEvent{
		Percent:       clampPercent(n.Percent),
		CurrentFPS:    n.FPS,
		TimeRemaining: TimeRemainingUnknown,
	}
	if event.CurrentFPS < 0 || math.IsNaN(event.CurrentFPS) || math.IsInf(event.CurrentFPS, 0) {
		event.CurrentFPS = 0
	}
	if seconds, ok := timemarkSeconds(n.Timemark); ok && seconds > 0 {
		event.TimeRemaining = formatSeconds(seconds)
	}
	return event
}

func clampPercent(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// timemarkSeconds parses an HH:MM:SS marker into total seconds.
func timemarkSeconds(mark string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(mark), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total int64
	for _, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || value < 0 {
			return 0, false
		}
		total = total*60 + value
	}
	return total, true
}

// formatSeconds renders a coarse human-readable duration: hours and minutes
// above an hour, minutes and seconds above a minute, seconds otherwise.
func formatSeconds(total int64) string {
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
