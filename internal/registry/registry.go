// Package registry keeps the daemon's shared view of every worker that has
// reported in on the control plane.
package registry

import (
	"sync"

	"freight/internal/protocol"
)

// Status labels applied by message kind. Stop messages overwrite the label
// with their own terminal status string.
const (
	StatusUnknown   = "unknown"
	StatusConnected = "connected"
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Record is the last-known state of one worker. Records are created on the
// first message from an identity and updated in place afterwards; a closed
// connection only clears Connected so the final status stays visible.
type Record struct {
	Tool        string
	Dir         string
	Status      string
	LastMessage string
	Bytes       *uint64
	Host        string
	PID         int
	Connected   bool
}

// Registry is the shared worker table. Construct one per daemon and hand
// the same instance to every component that needs it.
type Registry struct {
	mu      sync.RWMutex
	workers map[protocol.WorkerID]*Record
}

func New() *Registry {
	return &Registry{workers: make(map[protocol.WorkerID]*Record)}
}

// Apply records the effect of one decoded message and returns the identity
// it was filed under. The whole read-modify-write runs under the write
// lock; updates for different identities never lose writes to each other.
func (r *Registry) Apply(msg protocol.Message) protocol.WorkerID {
	id := protocol.IdentityOf(msg)

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.workers[id]
	if !ok {
		record = &Record{
			Tool:      id.Tool,
			Dir:       id.Dir,
			Status:    StatusUnknown,
			Connected: true,
		}
		r.workers[id] = record
	}

	switch m := msg.(type) {
	case protocol.Hello:
		record.Host = m.Host
		record.PID = m.PID
		record.Connected = true
		record.Status = StatusConnected
	case protocol.Start:
		record.Status = StatusRunning
	case protocol.Progress:
		record.LastMessage = m.Text
		if m.Bytes != nil {
			value := *m.Bytes
			record.Bytes = &value
		}
	case protocol.Stop:
		if m.Status != "" {
			record.Status = m.Status
		} else {
			record.Status = StatusCompleted
		}
		if m.Bytes != nil {
			value := *m.Bytes
			record.Bytes = &value
		}
		if m.Text != "" {
			record.LastMessage = m.Text
		}
	}
	return id
}

// MarkDisconnected clears the connectivity flag for an identity, keeping
// the rest of the record for consumers to display.
func (r *Registry) MarkDisconnected(id protocol.WorkerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.workers[id]; ok {
		record.Connected = false
	}
}

// Get returns a copy of one record.
func (r *Registry) Get(id protocol.WorkerID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.workers[id]
	if !ok {
		return Record{}, false
	}
	return copyRecord(record), true
}

// Snapshot returns a point-in-time copy of the whole table. The copy is
// fully detached; callers may hold it as long as they like without
// blocking writers.
func (r *Registry) Snapshot() map[protocol.WorkerID]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[protocol.WorkerID]Record, len(r.workers))
	for id, record := range r.workers {
		out[id] = copyRecord(record)
	}
	return out
}

// Len reports how many workers have ever reported in.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

func copyRecord(record *Record) Record {
	out := *record
	if record.Bytes != nil {
		value := *record.Bytes
		out.Bytes = &value
	}
	return out
}
