package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ProtocolError reports a line that could not be decoded. Handlers log it
// and keep reading; it is never fatal to a connection.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %q", e.Reason, e.Line)
}

// Parse decodes one control-plane line. Unknown keys are ignored and
// unparsable integers are treated as absent; only an empty line or an
// unknown first token fails.
func Parse(line string) (Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, &ProtocolError{Line: line, Reason: "empty message"}
	}

	pairs := parsePairs(fields[1:])
	switch fields[0] {
	case "HELLO":
		pid, _ := strconv.Atoi(pairs["pid"])
		return Hello{Host: pairs["host"], PID: pid}, nil
	case "START":
		return Start{Tool: pairs["tool"], Dir: pairs["dir"]}, nil
	case "PROGRESS":
		return Progress{
			Tool:  pairs["tool"],
			Dir:   pairs["dir"],
			Text:  pairs["msg"],
			Bytes: parseBytes(pairs),
		}, nil
	case "STOP":
		return Stop{
			Tool:   pairs["tool"],
			Dir:    pairs["dir"],
			Status: pairs["status"],
			Bytes:  parseBytes(pairs),
			Text:   pairs["msg"],
		}, nil
	default:
		return nil, &ProtocolError{Line: line, Reason: "unknown message type " + fields[0]}
	}
}

func parsePairs(fields []string) map[string]string {
	pairs := make(map[string]string, len(fields))
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

func parseBytes(pairs map[string]string) *uint64 {
	raw, ok := pairs["bytes"]
	if !ok {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

// Encode renders a message back into its wire line, without the trailing
// newline. Absent optional fields are omitted entirely. Each value occupies
// a single whitespace-delimited token on the wire, so whitespace inside a
// value is folded to underscores to keep the line parseable.
func Encode(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Kind())
	switch m := msg.(type) {
	case Hello:
		writePair(&b, "host", m.Host)
		if m.PID != 0 {
			writePair(&b, "pid", strconv.Itoa(m.PID))
		}
	case Start:
		writePair(&b, "tool", m.Tool)
		writePair(&b, "dir", m.Dir)
	case Progress:
		writePair(&b, "tool", m.Tool)
		writePair(&b, "dir", m.Dir)
		writePair(&b, "msg", m.Text)
		if m.Bytes != nil {
			writePair(&b, "bytes", strconv.FormatUint(*m.Bytes, 10))
		}
	case Stop:
		writePair(&b, "tool", m.Tool)
		writePair(&b, "dir", m.Dir)
		writePair(&b, "status", m.Status)
		if m.Bytes != nil {
			writePair(&b, "bytes", strconv.FormatUint(*m.Bytes, 10))
		}
		writePair(&b, "msg", m.Text)
	}
	return b.String()
}

func writePair(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(foldWhitespace(value))
}

// foldWhitespace collapses each whitespace run to a single underscore so
// the value survives field-splitting on the way back in.
func foldWhitespace(value string) string {
	if strings.IndexFunc(value, unicode.IsSpace) < 0 {
		return value
	}
	return strings.Join(strings.Fields(value), "_")
}
