package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"posturesync/internal/api"
)

// Client talks to a running daemon over its control socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon socket: %w", err)
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the socket connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Status fetches daemon status.
func (c *Client) Status() (api.DaemonStatus, error) {
	var resp StatusResponse
	if err := c.rpc.Call(ServiceName+".Status", StatusRequest{}, &resp); err != nil {
		return api.DaemonStatus{}, err
	}
	return resp.Status, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (bool, error) {
	var resp StopResponse
	if err := c.rpc.Call(ServiceName+".Stop", StopRequest{}, &resp); err != nil {
		return false, err
	}
	return resp.Stopped, nil
}

// SessionList returns up to limit sessions, newest first.
func (c *Client) SessionList(limit int) ([]api.SessionSnapshot, error) {
	var resp SessionListResponse
	if err := c.rpc.Call(ServiceName+".SessionList", SessionListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// SessionDescribe fetches one session by id or join code together with its
// recordings.
func (c *Client) SessionDescribe(id, joinCode string) (*SessionDescribeResponse, error) {
	var resp SessionDescribeResponse
	req := SessionDescribeRequest{ID: id, JoinCode: joinCode}
	if err := c.rpc.Call(ServiceName+".SessionDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionFail marks a session FAILED after an unrecoverable fault.
func (c *Client) SessionFail(id, joinCode, reason string) (*SessionFailResponse, error) {
	var resp SessionFailResponse
	req := SessionFailRequest{ID: id, JoinCode: joinCode, Reason: reason}
	if err := c.rpc.Call(ServiceName+".SessionFail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CatalogList returns the active posture steps in workflow order.
func (c *Client) CatalogList() ([]api.StepInfo, error) {
	var resp CatalogListResponse
	if err := c.rpc.Call(ServiceName+".CatalogList", CatalogListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Steps, nil
}

// TestNotification triggers a test push through the configured notifier.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.rpc.Call(ServiceName+".TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
