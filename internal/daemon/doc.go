// Package daemon wires the job manager, job store, preview server, and
// control API into the single background process behind the reframed
// binary. A lockfile enforces one instance per machine.
package daemon
