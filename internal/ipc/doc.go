// Package ipc exposes daemon control to the CLI as JSON-RPC over a Unix
// domain socket under the log directory. This is a separate plane from the
// worker control socket, which speaks the line protocol.
package ipc
