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
	if err := c.client.Call("Daemon.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopTask asks the daemon to stop one task.
func (c *Client) StopTask(id int64) (*StopTaskResponse, error) {
	var resp StopTaskResponse
	if err := c.client.Call("Daemon.StopTask", StopTaskRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueuePosition asks where a queued task sits in the admission order.
func (c *Client) QueuePosition(id int64) (*QueuePositionResponse, error) {
	var resp QueuePositionResponse
	if err := c.client.Call("Daemon.QueuePosition", QueuePositionRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
