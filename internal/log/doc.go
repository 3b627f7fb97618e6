// Package log builds the run's slog.Logger: a redacting handler over a text
// handler writing to stdout and a log file, with timestamps rendered in a
// fixed timezone.
package log
