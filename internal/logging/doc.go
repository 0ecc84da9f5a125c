// Package logging configures the slog loggers used across reframe and
// provides the attribute helpers shared by every component.
package logging
