// Package ffprobe shells out to ffprobe and extracts the video metadata
// reframe needs to plan a conversion.
package ffprobe
