package control

import (
	"fmt"
	"net"
	"os"
	"time"

	"freight/internal/protocol"
)

// Client is the worker side of the control plane. The shipped scan and
// migrate tools use it to report status; tests use it to play the part of
// a worker.
type Client struct {
	conn net.Conn
	tool string
	dir  string
}

// Dial connects to the control socket for one worker identity.
func Dial(path, tool, dir string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, tool: tool, dir: dir}, nil
}

// Close closes the connection. The daemon marks the worker disconnected.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello announces the worker's origin.
func (c *Client) Hello() error {
	host, _ := os.Hostname()
	return c.send(protocol.Hello{Host: host, PID: os.Getpid()})
}

// Start announces that work has begun.
func (c *Client) Start() error {
	return c.send(protocol.Start{Tool: c.tool, Dir: c.dir})
}

// Progress reports incremental progress. Pass bytes < 0 to omit the count.
func (c *Client) Progress(text string, bytes int64) error {
	msg := protocol.Progress{Tool: c.tool, Dir: c.dir, Text: text}
	if bytes >= 0 {
		value := uint64(bytes)
		msg.Bytes = &value
	}
	return c.send(msg)
}

// Stop reports the terminal outcome. Pass bytes < 0 to omit the count.
func (c *Client) Stop(status, text string, bytes int64) error {
	msg := protocol.Stop{Tool: c.tool, Dir: c.dir, Status: status, Text: text}
	if bytes >= 0 {
		value := uint64(bytes)
		msg.Bytes = &value
	}
	return c.send(msg)
}

// Send writes an arbitrary message, bypassing the client's identity.
func (c *Client) Send(msg protocol.Message) error {
	return c.send(msg)
}

// Raw writes bytes to the connection verbatim. Tests use it to exercise
// the server's handling of malformed lines.
func (c *Client) Raw(line string) (int, error) {
	return c.conn.Write([]byte(line))
}

func (c *Client) send(msg protocol.Message) error {
	if _, err := fmt.Fprintln(c.conn, protocol.Encode(msg)); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	return nil
}
