// Package queue persists job records in SQLite so the daemon API and the
// CLI can inspect submitted, running, and finished conversions. Records
// describe work; the daemon never resumes them after a restart.
package queue
