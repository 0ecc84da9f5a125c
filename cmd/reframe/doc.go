// Command reframe is the CLI front end for the reframed daemon: it submits
// conversion jobs, inspects media files, and manages the job list over the
// daemon's control API.
package main
