// Package transcode owns the lifecycle of a single conversion job: it turns
// raw encoder notifications into normalized progress events and drives the
// encoder process from start to exactly one terminal outcome.
package transcode
