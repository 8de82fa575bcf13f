// Package graph runs a fixed set of named nodes as a dependency DAG.
// Nodes whose dependencies are satisfied execute in parallel; the first
// node error aborts the whole run.
package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Node is one unit of work in the graph. Run must be a pure function
// over upstream outputs: it may read anything produced by its Deps and
// must not mutate shared state outside its own output.
type Node struct {
	Name string
	Deps []string
	Run  func(ctx context.Context) error
}

// Graph is a fixed DAG of nodes, assembled once per run.
type Graph struct {
	nodes map[string]Node
	order []string // insertion order, for stable reporting
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// Add registers a node. Duplicate names are an error surfaced at Run.
func (g *Graph) Add(n Node) *Graph {
	if _, exists := g.nodes[n.Name]; !exists {
		g.order = append(g.order, n.Name)
	}
	g.nodes[n.Name] = n
	return g
}

// NodeError reports which node failed, so the run result can name the
// failing view.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string { return "graph: node " + e.Node + ": " + e.Err.Error() }
func (e *NodeError) Unwrap() error { return e.Err }

// Run validates the graph and executes it. Nodes start as soon as all
// their dependencies finish; independent nodes run concurrently. On the
// first failure the context is cancelled and the error names the node.
func (g *Graph) Run(ctx context.Context) error {
	if err := g.validate(); err != nil {
		return err
	}

	done := make(map[string]chan struct{}, len(g.nodes))
	for name := range g.nodes {
		done[name] = make(chan struct{})
	}

	var mu sync.Mutex
	started := time.Now()

	eg, gctx := errgroup.WithContext(ctx)
	for _, name := range g.order {
		node := g.nodes[name]
		eg.Go(func() error {
			for _, dep := range node.Deps {
				select {
				case <-done[dep]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			nodeStart := time.Now()
			if err := node.Run(gctx); err != nil {
				return &NodeError{Node: node.Name, Err: err}
			}

			mu.Lock()
			zap.L().Debug("graph: node complete",
				zap.String("node", node.Name),
				zap.Duration("took", time.Since(nodeStart)),
			)
			mu.Unlock()

			close(done[node.Name])
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	zap.L().Info("graph: run complete",
		zap.Int("nodes", len(g.nodes)),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// validate checks that every dependency exists and the graph is acyclic.
func (g *Graph) validate() error {
	for _, name := range g.order {
		for _, dep := range g.nodes[name].Deps {
			if _, ok := g.nodes[dep]; !ok {
				return eris.Errorf("graph: node %s depends on unknown node %s", name, dep)
			}
		}
	}

	// Kahn's algorithm; leftover nodes mean a cycle.
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, name := range g.order {
		indegree[name] = len(g.nodes[name].Deps)
		for _, dep := range g.nodes[name].Deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var visited int
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(g.nodes) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return eris.Errorf("graph: cycle involving %v", stuck)
	}
	return nil
}
