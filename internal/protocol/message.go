package protocol

// Tool names spoken on the control plane.
const (
	ToolScan    = "scan"
	ToolMigrate = "migrate"
)

// StatusOK is the terminal status string a Stop message carries on success.
// Every other value, and an absent status, means failure.
const StatusOK = "ok"

// UnknownDir is the placeholder identity directory used when a message
// omits its dir field. Two workers that both omit the field collide on it;
// tools are expected to always send dir.
const UnknownDir = "unknown"

// Message is one decoded control-plane line. Exactly one of the concrete
// kinds below implements it; fields that do not apply to a kind do not
// exist on it.
type Message interface {
	// Kind returns the wire keyword for this message.
	Kind() string
}

// Hello announces the worker's origin, once per connection.
type Hello struct {
	Host string
	PID  int
}

// Start announces that the worker has begun work on a directory.
type Start struct {
	Tool string
	Dir  string
}

// Progress reports incremental progress. Bytes is nil when the worker did
// not report a byte count.
type Progress struct {
	Tool  string
	Dir   string
	Text  string
	Bytes *uint64
}

// Stop is the terminal message for a worker. Status is empty when the
// worker did not report one.
type Stop struct {
	Tool   string
	Dir    string
	Status string
	Bytes  *uint64
	Text   string
}

func (Hello) Kind() string    { return "HELLO" }
func (Start) Kind() string    { return "START" }
func (Progress) Kind() string { return "PROGRESS" }
func (Stop) Kind() string     { return "STOP" }

// Ok reports whether the stop carries the success status.
func (s Stop) Ok() bool { return s.Status == StatusOK }

// WorkerID identifies one logical worker for the life of a migration run.
type WorkerID struct {
	Tool string
	Dir  string
}

func (id WorkerID) String() string { return id.Tool + ":" + id.Dir }

// IdentityOf derives the registry identity for a message. Messages without
// a tool or directory fall back to the "unknown" placeholders, matching
// what workers that omit the fields collapse into.
func IdentityOf(msg Message) WorkerID {
	tool, dir := UnknownDir, UnknownDir
	switch m := msg.(type) {
	case Hello:
		// HELLO carries no tool or directory; the connection's identity is
		// established by the first START or PROGRESS line.
	case Start:
		tool, dir = m.Tool, m.Dir
	case Progress:
		tool, dir = m.Tool, m.Dir
	case Stop:
		tool, dir = m.Tool, m.Dir
	}
	if tool == "" {
		tool = UnknownDir
	}
	if dir == "" {
		dir = UnknownDir
	}
	return WorkerID{Tool: tool, Dir: dir}
}
