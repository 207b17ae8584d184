// Package logging builds the slog loggers used across the freight daemon
// and CLI.
//
// It provides console and JSON handlers, typed attribute helpers, and
// canonical field names so every component logs with the same vocabulary.
// Components receive a *slog.Logger by injection; use NewComponentLogger to
// tag a logger with its owning component.
package logging
