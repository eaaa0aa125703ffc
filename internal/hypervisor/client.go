// Package hypervisor talks to a single Cloud Hypervisor process over its
// UNIX control socket: config generation and the vm.create/vm.boot/
// vm.shutdown/vm.info/vmm.ping REST surface (spec.md §6). Grounded on the
// teacher's internal/vmm/cloudhv.go chClient (a stdlib *http.Client with a
// custom DialContext dialing the control socket) and on
// virshle_core/src/cloud_hypervisor/vm/create.rs in the original
// implementation.
package hypervisor

import (
	"context"
	"net"
	"time"

	"github.com/virshle/virshle/internal/httpclient"
	"github.com/virshle/virshle/internal/uri"
	"github.com/virshle/virshle/internal/virrors"
)

// Client talks to one cloud-hypervisor process's api socket.
type Client struct {
	http *httpclient.Client
}

// NewClient builds a Client against the control socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{http: httpclient.New(uri.Uri{Kind: uri.Local, Path: socketPath})}
}

// Ping issues GET /api/v1/vmm.ping, the liveness probe this implementation
// chose per the Open Question in spec.md §9 (a): "ping_ch uses
// /api/v1/vmm.ping exclusively".
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Probe(ctx, "/api/v1/vmm.ping")
}

// Create PUTs the generated VM configuration to /api/v1/vm.create.
func (c *Client) Create(ctx context.Context, cfg *VmConfig) error {
	resp, err := c.http.Put(ctx, "/api/v1/vm.create", cfg)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return virrors.New("vm.create rejected by hypervisor", resp.String())
	}
	return nil
}

// Boot PUTs /api/v1/vm.boot.
func (c *Client) Boot(ctx context.Context) error {
	resp, err := c.http.Put(ctx, "/api/v1/vm.boot", nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return virrors.New("vm.boot rejected by hypervisor", resp.String())
	}
	return nil
}

// Shutdown PUTs /api/v1/vm.shutdown. Per spec.md §4.5 a non-success
// response is the caller's to log, not to surface as a failure — it simply
// returns the error and lets the caller decide.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.http.Put(ctx, "/api/v1/vm.shutdown", nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return virrors.New("vm.shutdown rejected by hypervisor", resp.String())
	}
	return nil
}

// Info GETs /api/v1/vm.info and decodes it into a VmInfo.
func (c *Client) Info(ctx context.Context) (*VmInfo, error) {
	resp, err := c.http.Get(ctx, "/api/v1/vm.info")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, virrors.New("vm.info rejected by hypervisor", resp.String())
	}
	var info VmInfo
	if err := resp.JSON(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VmInfo is the subset of GET /api/v1/vm.info's response virshle cares
// about: the textual hypervisor-reported state.
type VmInfo struct {
	State string `json:"state"`
}

// WaitForSocket polls until the control socket at path accepts a TCP-style
// connection or timeout elapses, mirroring the teacher's waitForSocket.
func WaitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.Dial("unix", path)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return virrors.Wrap(err, "hypervisor control socket never appeared", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
