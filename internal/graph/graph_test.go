package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRespectsDependencies(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	g := New().
		Add(Node{Name: "c", Deps: []string{"b"}, Run: record("c")}).
		Add(Node{Name: "a", Run: record("a")}).
		Add(Node{Name: "b", Deps: []string{"a"}, Run: record("b")})

	require.NoError(t, g.Run(context.Background()))
	require.Len(t, order, 3)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestRunParallelFanOut(t *testing.T) {
	t.Parallel()

	// Two independent nodes both blocked on a gate; if they ran
	// serially the second would deadlock waiting for the first.
	gate := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	worker := func(context.Context) error {
		arrived.Done()
		<-gate
		return nil
	}

	go func() {
		arrived.Wait()
		close(gate)
	}()

	g := New().
		Add(Node{Name: "left", Run: worker}).
		Add(Node{Name: "right", Run: worker})
	require.NoError(t, g.Run(context.Background()))
}

func TestRunNodeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	g := New().
		Add(Node{Name: "ok", Run: func(context.Context) error { return nil }}).
		Add(Node{Name: "bad", Deps: []string{"ok"}, Run: func(context.Context) error { return boom }})

	err := g.Run(context.Background())
	require.Error(t, err)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "bad", nodeErr.Node)
	assert.ErrorIs(t, err, boom)
}

func TestRunUnknownDependency(t *testing.T) {
	t.Parallel()

	g := New().Add(Node{Name: "a", Deps: []string{"ghost"}, Run: func(context.Context) error { return nil }})
	err := g.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestRunCycle(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	g := New().
		Add(Node{Name: "a", Deps: []string{"b"}, Run: noop}).
		Add(Node{Name: "b", Deps: []string{"a"}, Run: noop})

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRunFailureCancelsDownstream(t *testing.T) {
	t.Parallel()

	var ran bool
	g := New().
		Add(Node{Name: "bad", Run: func(context.Context) error { return errors.New("boom") }}).
		Add(Node{Name: "after", Deps: []string{"bad"}, Run: func(context.Context) error {
			ran = true
			return nil
		}})

	require.Error(t, g.Run(context.Background()))
	assert.False(t, ran)
}
