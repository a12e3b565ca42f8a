package parallel

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// Matrix lets a *mat.Dense travel inside a broadcast payload. Entries are
// encoded as IEEE doubles so every worker decodes bit-identical values.
type Matrix struct {
	*mat.Dense
}

var (
	_ msgpack.CustomEncoder = Matrix{}
	_ msgpack.CustomDecoder = (*Matrix)(nil)
)

type denseWire struct {
	Rows int       `msgpack:"r"`
	Cols int       `msgpack:"c"`
	Data []float64 `msgpack:"d"`
}

func (m Matrix) EncodeMsgpack(enc *msgpack.Encoder) error {
	if m.Dense == nil || m.Dense.IsEmpty() {
		return enc.EncodeNil()
	}
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for row := 0; row < rows; row++ {
		data = append(data, m.RawRowView(row)...)
	}
	return enc.Encode(denseWire{Rows: rows, Cols: cols, Data: data})
}

func (m *Matrix) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w *denseWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	if w == nil {
		m.Dense = nil
		return nil
	}
	if w.Rows < 1 || w.Cols < 1 || len(w.Data) != w.Rows*w.Cols {
		return errors.Errorf("corrupt matrix payload: %dx%d with %d entries", w.Rows, w.Cols, len(w.Data))
	}
	m.Dense = mat.NewDense(w.Rows, w.Cols, w.Data)
	return nil
}

// Encode serializes v for a broadcast.
func Encode(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	return data, errors.Wrap(err, "encode payload")
}

// Decode deserializes a broadcast payload into v.
func Decode(data []byte, v interface{}) error {
	return errors.Wrap(msgpack.Unmarshal(data, v), "decode payload")
}
