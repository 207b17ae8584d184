package orchestrator

import "time"

// State is a directory job's position in the two-phase lifecycle.
type State string

const (
	StatePending       State = "pending"
	StateScanning      State = "scanning"
	StateScanFailed    State = "scan_failed"
	StateScanOk        State = "scan_ok"
	StateMigrating     State = "migrating"
	StateMigrateFailed State = "migrate_failed"
	StateMigrateOk     State = "migrate_ok"
	StateTimedOut      State = "timed_out"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateScanFailed, StateMigrateFailed, StateMigrateOk, StateTimedOut:
		return true
	}
	return false
}

// job is the orchestrator's own handle on one directory. It is deliberately
// separate storage from the worker registry: this is "what I launched",
// the registry is "what reported in".
type job struct {
	dir        string // absolute path, as handed to the tools
	name       string
	state      State
	scanPID    int
	migratePID int
	deadline   time.Time // zero when timeouts are disabled or job is terminal
	updatedAt  time.Time
}

// JobView is a copy of one job's state for consumers.
type JobView struct {
	Dir        string
	Name       string
	State      State
	ScanPID    int
	MigratePID int
	UpdatedAt  time.Time
}

func (j *job) view() JobView {
	return JobView{
		Dir:        j.dir,
		Name:       j.name,
		State:      j.state,
		ScanPID:    j.scanPID,
		MigratePID: j.migratePID,
		UpdatedAt:  j.updatedAt,
	}
}
