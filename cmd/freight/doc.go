// Package main hosts the freight CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: starting migration runs, inspecting workers
// and jobs, browsing run history, and configuration scaffolding. Keep this
// package lean: add new functionality by extending the internal packages
// first, then surface it through dedicated commands or flags here.
package main
