package runlog

import (
	"context"
	"log/slog"

	"freight/internal/bus"
	"freight/internal/logging"
)

// Recorder tails the status bus and appends every message to the history
// store. Write failures are logged and dropped; history is best effort and
// never blocks the control plane.
type Recorder struct {
	store  *Store
	runID  string
	sub    *bus.Subscription
	bus    *bus.Bus
	logger *slog.Logger
	done   chan struct{}
}

// NewRecorder subscribes to b and starts recording under runID.
func NewRecorder(store *Store, b *bus.Bus, runID string, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		runID:  runID,
		sub:    b.Subscribe("runlog"),
		bus:    b,
		logger: logging.NewComponentLogger(logger, "runlog"),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.sub.C():
			if err := r.store.RecordMessage(context.Background(), r.runID, msg); err != nil {
				r.logger.Warn("record message", logging.Error(err))
			}
		}
	}
}

// RecordExit appends a worker process exit observed by the supervisor.
func (r *Recorder) RecordExit(tool, dir string, pid int, exitErr error) {
	if err := r.store.RecordProcessExit(context.Background(), r.runID, tool, dir, pid, exitErr); err != nil {
		r.logger.Warn("record process exit", logging.Error(err))
	}
}

// Close detaches from the bus and drains nothing further. Messages already
// queued but not yet written are discarded.
func (r *Recorder) Close() {
	r.bus.Unsubscribe(r.sub)
	close(r.done)
}
