// Package federation fans a query out across the nodes named in
// config.toml's [[node]] list and aggregates per-node results without
// letting one unreachable node fail the whole query (spec.md §4.7).
// Grounded on virshle_core/src/config/node/{mod,best}.rs in the original
// implementation.
package federation

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"

	"github.com/virshle/virshle/internal/client"
	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/uri"
)

// Result is one node's outcome: Data is nil and State carries the failure
// when the node could not be reached (spec.md §4.7 "(ConnectionState,
// None)").
type Result struct {
	Node  config.Node
	State uri.ConnectionState
	Data  []byte
}

// Query opens one connection per node and GETs path, building a
// node -> result mapping. Per spec.md §4.7 this implementation parallelises
// (the spec permits but does not require it).
func Query(ctx context.Context, nodes []config.Node, path string) []Result {
	results := make([]Result, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n config.Node) {
			defer wg.Done()
			results[i] = queryOne(ctx, n, path)
		}(i, n)
	}
	wg.Wait()
	return results
}

func queryOne(ctx context.Context, n config.Node, path string) Result {
	return callOne(n, func(c *client.Client, raw *rawBody) error {
		return c.Get(ctx, path, raw)
	})
}

// PostQuery is Query's POST-with-body counterpart, used for /vm/list's
// filtered form.
func PostQuery(ctx context.Context, nodes []config.Node, path string, body any) []Result {
	results := make([]Result, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n config.Node) {
			defer wg.Done()
			results[i] = callOne(n, func(c *client.Client, raw *rawBody) error {
				return c.Post(ctx, path, body, raw)
			})
		}(i, n)
	}
	wg.Wait()
	return results
}

func callOne(n config.Node, do func(*client.Client, *rawBody) error) Result {
	c, err := client.New(n.Url)
	if err != nil {
		log.Printf("federation: node %s: %v", n.Name, err)
		return Result{Node: n, State: uri.Unreachable}
	}

	var raw rawBody
	if err := do(c, &raw); err != nil {
		log.Printf("federation: node %s: %v", n.Name, err)
		if errors.Is(err, os.ErrNotExist) {
			return Result{Node: n, State: uri.SocketNotFound}
		}
		return Result{Node: n, State: uri.DaemonDown}
	}
	return Result{Node: n, State: uri.DaemonUp, Data: raw}
}

// rawBody captures a response body verbatim so Query can stay agnostic of
// the endpoint's payload shape; callers re-decode Data into their own type.
type rawBody []byte

func (r *rawBody) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}
