// Package ffmpeg wraps the ffmpeg command-line encoder: it turns a
// transcode request into an argument vector, launches the process, and
// decodes its progress feed into raw notifications.
package ffmpeg
