// Package preview serves local video files over HTTP with byte-range
// support so a player can scrub source and output files around a
// conversion. The server trusts its single local caller; it is a
// pass-through file server, not a hardened public surface.
package preview
