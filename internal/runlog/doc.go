// Package runlog keeps an append-only history of migration runs in
// SQLite. It records what happened for later reporting; nothing in the
// daemon reads it back to make decisions.
package runlog
