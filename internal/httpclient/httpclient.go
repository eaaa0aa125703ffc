// Package httpclient performs an HTTP/1 handshake over a connection opened
// by internal/transport and exposes get/post/put against it, enforcing the
// handshake-liveness timeout from spec.md §4.2. Grounded on
// virshle_core/src/http_cli/http_request.rs in the original implementation
// and on the teacher's internal/vmm/cloudhv.go chClient (a stdlib
// *http.Client with a custom DialContext dialing a unix socket).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/virshle/virshle/internal/transport"
	"github.com/virshle/virshle/internal/uri"
	"github.com/virshle/virshle/internal/virrors"
)

// LivenessTimeout is the handshake-probe timeout from spec.md §4.2/§8 S6.
const LivenessTimeout = 1 * time.Second

// Response is a deferred HTTP response: callers choose how to consume the
// body (Bytes/String/JSON) instead of it being decoded eagerly.
type Response struct {
	StatusCode int
	body       []byte
}

func (r *Response) Bytes() []byte   { return r.body }
func (r *Response) String() string  { return string(r.body) }
func (r *Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON unmarshals the response body into out.
func (r *Response) JSON(out any) error {
	if err := json.Unmarshal(r.body, out); err != nil {
		return virrors.Wrap(err, "malformed json response body", "the daemon returned an unexpected body shape")
	}
	return nil
}

// Client performs HTTP/1 requests over a connection named by a uri.Uri. Each
// call opens a fresh transport stream, issues the request, and closes it —
// mirroring the original's per-request connection lifecycle rather than
// pooling, since the underlying stream may be a one-shot SSH channel.
type Client struct {
	target  uri.Uri
	baseURL string
	http    *http.Client
}

// New builds a Client against target (typically the daemon's advertised
// socket/host URI). baseURL is the path-only URL the requests are issued
// against (e.g. "http://virshle").
func New(target uri.Uri) *Client {
	c := &Client{target: target, baseURL: "http://virshle"}
	c.http = &http.Client{
		Transport: &http.Transport{
			DisableKeepAlives: true,
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				stream, _, err := transport.Open(ctx, target)
				if err != nil {
					return nil, err
				}
				return stream, nil
			},
		},
	}
	return c
}

// Probe issues a cheap liveness request and fails with the
// "Request timeout 1000ms reached" help text if no response header arrives
// within LivenessTimeout. This defends against a hypervisor that accepts
// the socket handshake but then hangs (spec.md §8 S6).
func (c *Client) Probe(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, LivenessTimeout)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return virrors.New("hypervisor did not respond", fmt.Sprintf("Request timeout %dms reached", LivenessTimeout.Milliseconds()))
		}
		return err
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, virrors.Wrap(err, "couldn't encode request body", "")
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't build request", "")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't build request", "")
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, virrors.Wrap(err, "request failed", req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't read response body", "")
	}
	return &Response{StatusCode: resp.StatusCode, body: data}, nil
}
