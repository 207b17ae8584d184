package main

import (
	"freight/internal/config"
	"freight/internal/preflight"
)

// environmentStatusLines renders one line per preflight check so a broken
// setup is visible before a run starts.
func environmentStatusLines(cfg *config.Config, colorize bool) []string {
	if cfg == nil {
		return nil
	}
	checks := preflight.RunAll(cfg)
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
			if check.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}
