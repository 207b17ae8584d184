package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Job mirrors the orchestrator's job view for IPC callers.
type Job struct {
	Dir        string    `json:"dir"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	ScanPID    int       `json:"scan_pid"`
	MigratePID int       `json:"migrate_pid"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RunStatus describes the active or most recent migration run.
type RunStatus struct {
	ID        string    `json:"id"`
	SourceDir string    `json:"source_dir"`
	DestDir   string    `json:"dest_dir"`
	StartedAt time.Time `json:"started_at"`
	Active    bool      `json:"active"`
	Error     string    `json:"error"`
	Jobs      []Job     `json:"jobs"`
}

// StatusResponse represents combined daemon/run status information.
type StatusResponse struct {
	Running       bool       `json:"running"`
	PID           int        `json:"pid"`
	LockPath      string     `json:"lock_path"`
	ControlSocket string     `json:"control_socket"`
	HistoryDBPath string     `json:"history_db_path"`
	Workers       int        `json:"workers"`
	Run           *RunStatus `json:"run"`
}

// MigrateRequest begins a migration run. Empty paths fall back to the
// daemon's configured source and destination.
type MigrateRequest struct {
	SourceDir string `json:"source_dir"`
	DestDir   string `json:"dest_dir"`
}

// MigrateResponse reports whether the run was accepted.
type MigrateResponse struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id"`
	Message  string `json:"message"`
}

// WorkersRequest fetches the worker registry.
type WorkersRequest struct{}

// Worker is one registry record.
type Worker struct {
	Tool        string  `json:"tool"`
	Dir         string  `json:"dir"`
	Status      string  `json:"status"`
	LastMessage string  `json:"last_message"`
	Bytes       *uint64 `json:"bytes"`
	Host        string  `json:"host"`
	PID         int     `json:"pid"`
	Connected   bool    `json:"connected"`
}

// WorkersResponse contains registry entries sorted by tool then directory.
type WorkersResponse struct {
	Workers []Worker `json:"workers"`
}

// JobsRequest fetches the job table of the active or most recent run.
type JobsRequest struct{}

// JobsResponse contains job entries sorted by directory.
type JobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// HistoryRequest lists recorded runs, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// Run is one recorded migration run.
type Run struct {
	ID         string     `json:"id"`
	SourceDir  string     `json:"source_dir"`
	DestDir    string     `json:"dest_dir"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Outcome    string     `json:"outcome"`
}

// HistoryResponse contains recorded runs.
type HistoryResponse struct {
	Runs []Run `json:"runs"`
}

// RunEventsRequest lists the recorded events of one run.
type RunEventsRequest struct {
	RunID string `json:"run_id"`
	Limit int    `json:"limit"`
}

// Event is one recorded control-plane or supervisor event.
type Event struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Tool   string    `json:"tool"`
	Dir    string    `json:"dir"`
	Status string    `json:"status"`
	Bytes  *uint64   `json:"bytes"`
	Detail string    `json:"detail"`
}

// RunEventsResponse contains a run's events in recorded order.
type RunEventsResponse struct {
	Events []Event `json:"events"`
}

// LogTailRequest reads lines from the daemon log. A negative offset
// requests the last Limit lines; Follow with WaitMillis polls for new
// lines before returning.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
