package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"reframe/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// VideoMetadata is the display-oriented summary of a file's first video
// stream. Frame rates are rounded to the nearest whole number.
type VideoMetadata struct {
	Width  uint `json:"width"`
	Height uint `json:"height"`
	FPS    uint `json:"fps"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrInvalidRequest, "ffprobe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", strings.TrimSpace(string(output)), err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// InspectVideo probes a file and summarizes its first video stream.
func InspectVideo(ctx context.Context, binary string, path string) (VideoMetadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return VideoMetadata{}, err
	}
	return result.VideoMetadata()
}

// VideoMetadata extracts width, height, and rounded fps from the first
// video stream. The exact rate (r_frame_rate) wins over the averaged rate
// when both parse.
func (r Result) VideoMetadata() (VideoMetadata, error) {
	stream, ok := r.FirstVideoStream()
	if !ok {
		return VideoMetadata{}, services.Wrap(services.ErrNotFound, "ffprobe", "video metadata", "no video stream", nil)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return VideoMetadata{}, services.Wrap(services.ErrExternalTool, "ffprobe", "video metadata", "stream missing dimensions", nil)
	}

	fps := parseFrameRate(stream.RFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(stream.AvgFrameRate)
	}

	meta := VideoMetadata{
		Width:  uint(stream.Width),
		Height: uint(stream.Height),
	}
	if fps > 0 && !math.IsInf(fps, 0) {
		meta.FPS = uint(math.Round(fps))
	}
	return meta, nil
}

// FirstVideoStream returns the first stream whose codec type is video.
func (r Result) FirstVideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value := parseFloat(r.Format.Duration)
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

// parseFrameRate handles the numerator/denominator form ffprobe reports
// ("30000/1001") as well as plain decimals ("23.976").
func parseFrameRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if num, den, found := strings.Cut(value, "/"); found {
		n, errN := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, errD := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if errN != nil || errD != nil || d == 0 {
			return 0
		}
		return n / d
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
