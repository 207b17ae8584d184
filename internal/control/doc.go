// Package control implements the worker-facing side of the freight control
// plane: the unix-socket listener the scan/migrate tools connect back to,
// the per-connection line readers that feed the worker registry and status
// bus, and the client the tools (and tests) use to report in.
package control
