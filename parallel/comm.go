// Package parallel holds the single program, multiple data worker model.
//
// Every worker runs the same code and talks to the others only through the
// collectives of a Comm. Collectives block and must be issued in the same
// order on every worker; any control flow that skips a collective on one
// worker deadlocks the group.
package parallel

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Comm is the communicator of one worker.
type Comm interface {
	// Rank of this worker, 0 <= Rank < Size
	Rank() int
	// Number of workers
	Size() int
	// Bcast sends data from root to every worker. Root gets its own data
	// back, every other worker gets a private copy of it.
	Bcast(ctx context.Context, root int, data []byte) ([]byte, error)
	// Barrier returns once every worker has entered it.
	Barrier(ctx context.Context) error
}

// serial is the communicator of a program that is not distributed.
type serial struct{}

// Serial returns a single worker communicator, its collectives are no-ops.
func Serial() Comm {
	return serial{}
}

func (serial) Rank() int { return 0 }

func (serial) Size() int { return 1 }

func (serial) Bcast(_ context.Context, root int, data []byte) ([]byte, error) {
	if root != 0 {
		return nil, errors.Errorf("bcast root %d out of range for 1 worker", root)
	}
	return data, nil
}

func (serial) Barrier(context.Context) error { return nil }

// LocalGroup runs a fixed number of workers as goroutines of this process.
// Workers are connected pairwise by FIFO channels, one per direction.
type LocalGroup struct {
	size  int
	links [][]chan []byte
}

// linkBuffer is the number of messages a sender may run ahead of a receiver.
const linkBuffer = 16

// NewLocalGroup returns a group of size workers.
func NewLocalGroup(size int) *LocalGroup {
	if size < 1 {
		panic(errors.Errorf("local group needs at least one worker, got %d", size))
	}
	links := make([][]chan []byte, size)
	for from := range links {
		links[from] = make([]chan []byte, size)
		for to := range links[from] {
			if to != from {
				links[from][to] = make(chan []byte, linkBuffer)
			}
		}
	}
	return &LocalGroup{size: size, links: links}
}

// Size returns the number of workers.
func (g *LocalGroup) Size() int {
	return g.size
}

// Comm returns the communicator of worker rank.
func (g *LocalGroup) Comm(rank int) Comm {
	if rank < 0 || rank >= g.size {
		panic(errors.Errorf("rank %d out of range for %d workers", rank, g.size))
	}
	return &localComm{group: g, rank: rank}
}

// Run executes program on every worker and waits for all of them. If a
// worker fails the others are cancelled; the returned error lists every
// failure that is not a consequence of that cancellation.
func (g *LocalGroup) Run(ctx context.Context, program func(ctx context.Context, comm Comm) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	errs := make([]error, g.size)
	for rank := 0; rank < g.size; rank++ {
		rank := rank
		eg.Go(func() error {
			errs[rank] = program(ctx, g.Comm(rank))
			return errs[rank]
		})
	}
	first := eg.Wait()
	if first == nil {
		return nil
	}

	var result *multierror.Error
	for rank, err := range errs {
		if err == nil || (errors.Is(err, context.Canceled) && !errors.Is(first, context.Canceled)) {
			continue
		}
		result = multierror.Append(result, errors.Wrapf(err, "rank %d", rank))
	}
	return result.ErrorOrNil()
}

type localComm struct {
	group *LocalGroup
	rank  int
	// mu serializes collectives issued by one worker
	mu sync.Mutex
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Bcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	if root < 0 || root >= c.group.size {
		return nil, errors.Errorf("bcast root %d out of range for %d workers", root, c.group.size)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bcast(ctx, root, data)
}

func (c *localComm) bcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	if c.rank == root {
		for to := 0; to < c.group.size; to++ {
			if to == root {
				continue
			}
			if err := send(ctx, c.group.links[root][to], append([]byte(nil), data...)); err != nil {
				return nil, err
			}
		}
		return data, nil
	}
	return receive(ctx, c.group.links[root][c.rank])
}

func (c *localComm) Barrier(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rank == 0 {
		for from := 1; from < c.group.size; from++ {
			if _, err := receive(ctx, c.group.links[from][0]); err != nil {
				return err
			}
		}
	} else if err := send(ctx, c.group.links[c.rank][0], nil); err != nil {
		return err
	}
	_, err := c.bcast(ctx, 0, nil)
	return err
}

func send(ctx context.Context, link chan<- []byte, data []byte) error {
	select {
	case link <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func receive(ctx context.Context, link <-chan []byte) ([]byte, error) {
	select {
	case data := <-link:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
