// Package daemon assembles the long-running freight process: the worker
// control-plane listener, the shared registry, the status bus, the run
// history store, and the per-run orchestration pipeline. It enforces
// single-instance execution with a file lock under the log directory.
package daemon
