package vecops

import (
	"context"
	"runtime"
	"sync"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Ops computes inner product matrices and linear combinations of snapshots.
// Work is split across the workers of Coordinator and the pieces are
// gathered, so every worker ends up with the full result.
type Ops struct {
	Coordinator  *parallel.Coordinator
	InnerProduct InnerProduct
	// MaxVectorsPerNode bounds the number of row snapshots held at once.
	MaxVectorsPerNode int
	// Concurrency bounds the goroutines of one worker, GOMAXPROCS if zero.
	Concurrency int
}

// NewOps returns Ops on a serial coordinator using the Euclidean inner
// product.
func NewOps() *Ops {
	return &Ops{
		Coordinator:       parallel.Default(),
		InnerProduct:      Euclidean,
		MaxVectorsPerNode: 64,
	}
}

func (o *Ops) coordinator() *parallel.Coordinator {
	if o.Coordinator == nil {
		return parallel.Default()
	}
	return o.Coordinator
}

func (o *Ops) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (o *Ops) rowChunk() int {
	if o.MaxVectorsPerNode > 1 {
		return o.MaxVectorsPerNode - 1
	}
	return 1
}

// block returns the half open range of n items owned by rank.
func block(n, rank, size int) (int, int) {
	return rank * n / size, (rank + 1) * n / size
}

// InnerProductMatrix returns the (len(rows) by len(cols)) matrix with entries
// InnerProduct(rows[i], cols[j]).
func (o *Ops) InnerProductMatrix(ctx context.Context, rows, cols Sequence) (*mat.Dense, error) {
	p, q := rows.Len(), cols.Len()
	if p == 0 || q == 0 {
		return nil, errors.Wrapf(modred.ErrData, "inner product of empty sequences (%d, %d)", p, q)
	}
	c := o.coordinator()
	from, to := block(p, c.Rank(), c.Size())

	blocks, err := gather(ctx, c, func() (parallel.Matrix, error) {
		if from == to {
			return parallel.Matrix{}, nil
		}
		m, err := o.innerProductRows(ctx, rows, cols, from, to)
		return parallel.Matrix{Dense: m}, err
	})
	if err != nil {
		return nil, err
	}

	res := mat.NewDense(p, q, nil)
	for rank, b := range blocks {
		if b.Dense == nil {
			continue
		}
		start, end := block(p, rank, c.Size())
		res.Slice(start, end, 0, q).(*mat.Dense).Copy(b.Dense)
	}
	return res, nil
}

// innerProductRows computes rows [from, to) of the inner product matrix.
func (o *Ops) innerProductRows(ctx context.Context, rows, cols Sequence, from, to int) (*mat.Dense, error) {
	q := cols.Len()
	res := mat.NewDense(to-from, q, nil)
	dim := -1
	var dimMu sync.Mutex
	checkDim := func(v mat.Vector, what string, index int) error {
		dimMu.Lock()
		defer dimMu.Unlock()
		if dim < 0 {
			dim = v.Len()
		}
		if v.Len() != dim {
			return errors.Wrapf(modred.ErrData, "%s vector %d has dimension %d, expected %d", what, index, v.Len(), dim)
		}
		return nil
	}

	for chunkStart := from; chunkStart < to; chunkStart += o.rowChunk() {
		chunkEnd := min(chunkStart+o.rowChunk(), to)
		chunk := make([]mat.Vector, chunkEnd-chunkStart)
		for index := range chunk {
			v, err := rows.At(chunkStart + index)
			if err != nil {
				return nil, err
			}
			if err := checkDim(v, "row", chunkStart+index); err != nil {
				return nil, err
			}
			chunk[index] = v
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency())
		for col := 0; col < q; col++ {
			col := col
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				v, err := cols.At(col)
				if err != nil {
					return err
				}
				if err := checkDim(v, "column", col); err != nil {
					return err
				}
				for index, row := range chunk {
					// each goroutine owns column col, no two write the same entry
					res.Set(chunkStart-from+index, col, o.InnerProduct(row, v))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// LinearCombinations returns, for each k, the vector
//
// sum_i seq[i] * coeffs(i, columns[k])
//
// coeffs must have one row per snapshot and columns must be valid column
// indices of coeffs.
func (o *Ops) LinearCombinations(ctx context.Context, seq Sequence, coeffs mat.Matrix, columns []int) ([]*mat.VecDense, error) {
	n := seq.Len()
	r, nc := coeffs.Dims()
	if n == 0 {
		return nil, errors.Wrap(modred.ErrData, "linear combination of an empty sequence")
	}
	if r != n {
		return nil, errors.Wrapf(modred.ErrData, "coefficient matrix has %d rows for %d snapshots", r, n)
	}
	for _, col := range columns {
		if col < 0 || col >= nc {
			return nil, errors.Wrapf(modred.ErrIndex, "column %d of %d", col, nc)
		}
	}

	c := o.coordinator()
	from, to := block(len(columns), c.Rank(), c.Size())
	blocks, err := gather(ctx, c, func() ([][]float64, error) {
		if from == to {
			return nil, nil
		}
		return o.combine(ctx, seq, coeffs, columns[from:to])
	})
	if err != nil {
		return nil, err
	}

	res := make([]*mat.VecDense, 0, len(columns))
	for _, b := range blocks {
		for _, data := range b {
			res = append(res, mat.NewVecDense(len(data), data))
		}
	}
	return res, nil
}

func (o *Ops) combine(ctx context.Context, seq Sequence, coeffs mat.Matrix, columns []int) ([][]float64, error) {
	var acc []*mat.VecDense
	for i := 0; i < seq.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := seq.At(i)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = make([]*mat.VecDense, len(columns))
			for k := range acc {
				acc[k] = mat.NewVecDense(v.Len(), nil)
			}
		}
		if v.Len() != acc[0].Len() {
			return nil, errors.Wrapf(modred.ErrData, "vector %d has dimension %d, expected %d", i, v.Len(), acc[0].Len())
		}
		for k, col := range columns {
			acc[k].AddScaledVec(acc[k], coeffs.At(i, col), v)
		}
	}
	res := make([][]float64, len(acc))
	for k := range acc {
		res[k] = acc[k].RawVector().Data
	}
	return res, nil
}

// piece is one worker's share of a gathered result.
type piece[T any] struct {
	Failed  bool   `msgpack:"failed"`
	Kind    string `msgpack:"kind"`
	Message string `msgpack:"message"`
	Value   T      `msgpack:"value"`
}

// gather runs compute on every worker and collects the results by rank. A
// failure on any worker is returned on every worker, so all of them leave
// the collective together.
func gather[T any](ctx context.Context, c *parallel.Coordinator, compute func() (T, error)) ([]T, error) {
	value, computeErr := compute()
	if !c.IsDistributed() {
		if computeErr != nil {
			return nil, computeErr
		}
		return []T{value}, nil
	}

	local := piece[T]{Value: value}
	if computeErr != nil {
		local = piece[T]{Failed: true, Kind: modred.Kind(computeErr), Message: computeErr.Error()}
	}
	data, encErr := parallel.Encode(local)
	if encErr != nil {
		return nil, encErr
	}
	all, gatherErr := parallel.AllGather(ctx, c, data)
	if gatherErr != nil {
		return nil, gatherErr
	}

	res := make([]T, len(all))
	for rank, raw := range all {
		var p piece[T]
		if err := parallel.Decode(raw, &p); err != nil {
			return nil, err
		}
		if p.Failed {
			if rank == c.Rank() {
				return nil, computeErr
			}
			return nil, errors.Wrapf(modred.FromKind(p.Kind, p.Message), "rank %d", rank)
		}
		res[rank] = p.Value
	}
	return res, nil
}
