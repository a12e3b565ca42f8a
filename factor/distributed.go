package factor

import (
	"context"

	"github.com/JIMMY-KSU/modred/parallel"
	"gonum.org/v1/gonum/mat"
)

type tripleWire struct {
	U      parallel.Matrix `msgpack:"u"`
	Values []float64       `msgpack:"values"`
	V      parallel.Matrix `msgpack:"v"`
}

// SVDOnLeader factors matrix on rank zero only and broadcasts the triple, so
// every worker of c returns bit-identical singular values and vectors. The
// other workers may pass a nil matrix.
func SVDOnLeader(ctx context.Context, c *parallel.Coordinator, matrix mat.Matrix) (*Triple, error) {
	wire, err := parallel.RunOnLeaderAndBroadcast(ctx, c, func() (tripleWire, error) {
		t, err := SVD(matrix)
		if err != nil {
			return tripleWire{}, err
		}
		return tripleWire{U: parallel.Matrix{Dense: t.U}, Values: t.Values, V: parallel.Matrix{Dense: t.V}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Triple{U: wire.U.Dense, Values: wire.Values, V: wire.V.Dense}, nil
}
