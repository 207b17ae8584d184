// Package preflight verifies that a migration run can actually proceed:
// the configured directories are accessible and the worker tools can be
// found on PATH. The CLI status command reports these checks so a broken
// setup is visible before any run is started.
package preflight
