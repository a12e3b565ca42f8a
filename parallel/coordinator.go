package parallel

import (
	"context"

	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Coordinator gives a worker the rank zero discipline: factorizations and
// storage access happen only on rank zero and their results are broadcast.
type Coordinator struct {
	comm   Comm
	logger logrus.FieldLogger
}

// NewCoordinator wraps comm. A nil logger discards log output.
func NewCoordinator(comm Comm, logger logrus.FieldLogger) *Coordinator {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Coordinator{
		comm:   comm,
		logger: logger.WithField("rank", comm.Rank()),
	}
}

// Default returns the coordinator of a program that is not distributed.
func Default() *Coordinator {
	return NewCoordinator(Serial(), nil)
}

// Comm returns the underlying communicator.
func (c *Coordinator) Comm() Comm { return c.comm }

// Rank of this worker.
func (c *Coordinator) Rank() int { return c.comm.Rank() }

// Size is the number of workers.
func (c *Coordinator) Size() int { return c.comm.Size() }

// IsRankZero reports whether this worker computes and touches storage.
func (c *Coordinator) IsRankZero() bool { return c.comm.Rank() == 0 }

// IsDistributed reports whether there is more than one worker.
func (c *Coordinator) IsDistributed() bool { return c.comm.Size() > 1 }

// Barrier blocks until every worker reached it.
func (c *Coordinator) Barrier(ctx context.Context) error {
	if !c.IsDistributed() {
		return nil
	}
	return c.comm.Barrier(ctx)
}

// envelope is the broadcast payload of a rank zero computation. A failure is
// sent as its error class and message so every worker fails the same way.
type envelope struct {
	Failed  bool   `msgpack:"failed"`
	Kind    string `msgpack:"kind"`
	Message string `msgpack:"message"`
	Payload []byte `msgpack:"payload"`
}

// RunOnLeaderAndBroadcast runs fn on rank zero only and hands its result to
// every worker. T must be encodable by msgpack; use Matrix for *mat.Dense
// fields. In a program that is not distributed fn is simply called.
//
// Rank zero returns the value fn produced, every other worker a decoded copy
// that is bit-identical to it.
func RunOnLeaderAndBroadcast[T any](ctx context.Context, c *Coordinator, fn func() (T, error)) (T, error) {
	var zero T
	if !c.IsDistributed() {
		return fn()
	}

	var (
		result    T
		env       envelope
		leaderErr error
	)
	if c.IsRankZero() {
		result, leaderErr = fn()
		if leaderErr == nil {
			env.Payload, leaderErr = Encode(result)
		}
		if leaderErr != nil {
			env = envelope{Failed: true, Kind: modred.Kind(leaderErr), Message: leaderErr.Error()}
		}
	}

	data, err := Encode(env)
	if err != nil {
		return zero, err
	}
	c.logger.WithField("action", "broadcast").Debugf("broadcasting %d bytes from rank 0", len(data))
	data, err = c.comm.Bcast(ctx, 0, data)
	if err != nil {
		return zero, errors.Wrap(err, "broadcast")
	}

	if !c.IsRankZero() {
		env = envelope{}
		if err := Decode(data, &env); err != nil {
			return zero, err
		}
	}
	if c.IsRankZero() {
		if leaderErr != nil {
			return zero, leaderErr
		}
		return result, nil
	}
	if env.Failed {
		return zero, modred.FromKind(env.Kind, env.Message)
	}
	if err := Decode(env.Payload, &result); err != nil {
		return zero, err
	}
	return result, nil
}

// Save runs write on rank zero only. A failed write fails every worker,
// otherwise every worker waits at a barrier until all have passed the save.
func Save(ctx context.Context, c *Coordinator, write func() error) error {
	if _, err := RunOnLeaderAndBroadcast(ctx, c, func() (struct{}, error) {
		return struct{}{}, write()
	}); err != nil {
		return err
	}
	return c.Barrier(ctx)
}

// Load runs load on rank zero only and broadcasts the matrix it returns.
func Load(ctx context.Context, c *Coordinator, load func() (*mat.Dense, error)) (*mat.Dense, error) {
	m, err := RunOnLeaderAndBroadcast(ctx, c, func() (Matrix, error) {
		m, err := load()
		return Matrix{Dense: m}, err
	})
	return m.Dense, err
}

// AllGather collects local from every worker, indexed by rank.
func AllGather(ctx context.Context, c *Coordinator, local []byte) ([][]byte, error) {
	if !c.IsDistributed() {
		return [][]byte{local}, nil
	}
	res := make([][]byte, c.Size())
	for root := range res {
		var send []byte
		if root == c.Rank() {
			send = local
		}
		data, err := c.comm.Bcast(ctx, root, send)
		if err != nil {
			return nil, errors.Wrapf(err, "gather from rank %d", root)
		}
		res[root] = data
	}
	return res, nil
}
