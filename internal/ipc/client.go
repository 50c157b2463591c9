package ipc

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
)

// Client sends single commands to a running governor.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient targets the socket at path.
func NewClient(path string) *Client {
	if path == "" {
		path = DefaultSocketPath
	}
	return &Client{socketPath: path, timeout: 5 * time.Second}
}

// Send writes cmd and returns the raw reply.
func (c *Client) Send(ctx context.Context, cmd string) (string, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return "", fmt.Errorf("connect to governor at %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if _, err := io.WriteString(conn, cmd); err != nil {
		return "", fmt.Errorf("send %q: %w", cmd, err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	reply, err := io.ReadAll(io.LimitReader(conn, 4096))
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(reply), nil
}

// Status sends STATUS and parses the reply.
func (c *Client) Status(ctx context.Context) (domain.Snapshot, error) {
	reply, err := c.Send(ctx, "STATUS")
	if err != nil {
		return domain.Snapshot{}, err
	}
	return ParseStatus(reply)
}

// SetMode sends SET_MODE and returns the reply line.
func (c *Client) SetMode(ctx context.Context, m domain.Mode) (string, error) {
	if !m.Valid() {
		return "", fmt.Errorf("%w: %d", domain.ErrUnknownMode, int(m))
	}
	return c.Send(ctx, "SET_MODE "+m.String())
}

// Trigger sends RUN_INFER.
func (c *Client) Trigger(ctx context.Context) (string, error) {
	return c.Send(ctx, "RUN_INFER")
}
