package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"reframe/internal/services"
)

// muxers maps user-facing container names to ffmpeg muxer identifiers.
// Unknown names fail fast instead of being passed through to ffmpeg.
var muxers = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"avi":  "avi",
	"mkv":  "matroska",
	"webm": "webm",
}

// Formats lists the supported container names in stable order.
func Formats() []string {
	return []string{"avi", "mkv", "mov", "mp4", "webm"}
}

func muxerFor(format string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	muxer, ok := muxers[name]
	if !ok {
		return "", services.Wrap(services.ErrUnsupportedFormat, "ffmpeg", "build args", fmt.Sprintf("unknown container %q", format), nil)
	}
	return muxer, nil
}

// BuildArgs maps a request onto the full ffmpeg argument vector. Pure: no
// filesystem access, no side effects. Resolution and frame-rate flags are
// emitted only when KeepOriginal is false and the value is present; their
// absence leaves the choice to the encoder.
func BuildArgs(req Request, policy Policy) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	muxer, err := muxerFor(req.Format)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-i", strings.TrimSpace(req.InputPath),
		"-c:v", policy.VideoCodec,
		"-crf", strconv.Itoa(policy.CRF),
		"-c:a", policy.AudioCodec,
		"-b:a", policy.AudioBitrate,
	}
	if !req.KeepOriginal {
		if req.Resolution != nil && req.Resolution.Width > 0 && req.Resolution.Height > 0 {
			args = append(args, "-s", fmt.Sprintf("%dx%d", req.Resolution.Width, req.Resolution.Height))
		}
		if req.FPS > 0 {
			args = append(args, "-r", strconv.Itoa(req.FPS))
		}
	}
	args = append(args,
		"-f", muxer,
		"-progress", "pipe:1",
		"-nostats",
		"-y",
		strings.TrimSpace(req.OutputPath),
	)
	return args, nil
}
