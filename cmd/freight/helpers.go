package main

import (
	"time"

	"github.com/dustin/go-humanize"
)

func formatBytes(bytes *uint64) string {
	if bytes == nil {
		return "-"
	}
	return humanize.IBytes(*bytes)
}

func formatAge(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return humanize.Time(at)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func jobStateKind(state string) statusKind {
	switch state {
	case "migrate_ok":
		return statusOK
	case "scan_failed", "migrate_failed", "timed_out":
		return statusError
	case "pending", "scanning", "scan_ok", "migrating":
		return statusInfo
	default:
		return statusWarn
	}
}
