package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Freight.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Migrate requests a migration run.
func (c *Client) Migrate(sourceDir, destDir string) (*MigrateResponse, error) {
	var resp MigrateResponse
	req := MigrateRequest{SourceDir: sourceDir, DestDir: destDir}
	if err := c.client.Call("Freight.Migrate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Workers retrieves the worker registry.
func (c *Client) Workers() (*WorkersResponse, error) {
	var resp WorkersResponse
	if err := c.client.Call("Freight.Workers", WorkersRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs retrieves the job table of the active or most recent run.
func (c *Client) Jobs() (*JobsResponse, error) {
	var resp JobsResponse
	if err := c.client.Call("Freight.Jobs", JobsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History retrieves recorded runs, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Freight.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunEvents retrieves one run's recorded events.
func (c *Client) RunEvents(runID string, limit int) (*RunEventsResponse, error) {
	var resp RunEventsResponse
	req := RunEventsRequest{RunID: runID, Limit: limit}
	if err := c.client.Call("Freight.RunEvents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail reads lines from the daemon log.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Freight.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Freight.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
