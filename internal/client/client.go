// Package client is the multi-transport client fabric federation and the
// CLI use to reach a node's daemon: it resolves a config.Node's url into a
// uri.Uri and wraps an httpclient.Client around it. Grounded on the
// teacher's internal/client/client.go doJSON idiom (a *http.Client wrapping
// a custom DialContext, with one method per daemon endpoint).
package client

import (
	"context"

	"github.com/virshle/virshle/internal/httpclient"
	"github.com/virshle/virshle/internal/uri"
	"github.com/virshle/virshle/internal/virrors"
)

// DefaultSocketPath is used both as the default target and as the
// ssh://.../path fallback when a remote URI carries no explicit path.
func DefaultSocketPath() string {
	return "/var/lib/virshle/virshle.sock"
}

// Client wraps an httpclient.Client bound to one node's daemon.
type Client struct {
	http *httpclient.Client
	uri  uri.Uri
}

// New parses rawURI (unix://, tcp://, or ssh://) and builds a Client
// against it.
func New(rawURI string) (*Client, error) {
	u, err := uri.Parse(rawURI, DefaultSocketPath())
	if err != nil {
		return nil, err
	}
	return &Client{http: httpclient.New(u), uri: u}, nil
}

// NewDefault builds a Client against this host's local daemon socket.
func NewDefault() *Client {
	u := uri.Uri{Kind: uri.Local, Path: DefaultSocketPath()}
	return &Client{http: httpclient.New(u), uri: u}
}

func (c *Client) Uri() uri.Uri { return c.uri }

func (c *Client) Get(ctx context.Context, path string, out any) error {
	resp, err := c.http.Get(ctx, path)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	resp, err := c.http.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	resp, err := c.http.Put(ctx, path, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *httpclient.Response, out any) error {
	if !resp.IsSuccess() {
		return virrors.New("daemon returned a non-success status", resp.String())
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}
