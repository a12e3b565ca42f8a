// Package matio loads and saves matrices. Callers in bpod and era only reach
// a Store from rank zero.
package matio

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Store is the persistence capability injected into the orchestrators.
type Store interface {
	Load(src string) (*mat.Dense, error)
	Save(m mat.Matrix, dst string) error
}

// ForFormat returns the store for a configured format name.
func ForFormat(format string) (Store, error) {
	switch format {
	case "", "text":
		return TextStore{}, nil
	case "binary":
		return BinaryStore{}, nil
	default:
		return nil, errors.Wrapf(modred.ErrConfiguration, "unknown storage format %q", format)
	}
}

// TextStore writes one matrix row per line. Entries are separated by
// Delimiter, or by white space if Delimiter is empty.
type TextStore struct {
	Delimiter string
}

// Save writes m to the text file dst.
func (s TextStore) Save(m mat.Matrix, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	delimiter := s.Delimiter
	if delimiter == "" {
		delimiter = " "
	}

	w := bufio.NewWriter(f)
	rows, cols := m.Dims()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if col > 0 {
				w.WriteString(delimiter)
			}
			w.WriteString(strconv.FormatFloat(m.At(row, col), 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", dst)
	}
	return errors.Wrapf(f.Close(), "close %s", dst)
}

// Load reads a matrix written by Save. Blank lines and lines starting with
// '#' are skipped; a file holding one value per line loads as a column.
func (s TextStore) Load(src string) (*mat.Dense, error) {
	rows, err := s.readRows(src)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(modred.ErrData, "%s holds no data", src)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for index, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(modred.ErrData, "%s: row %d has %d entries, expected %d", src, index, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func (s TextStore) readRows(src string) ([][]float64, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", src)
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fields []string
		if s.Delimiter == "" {
			fields = strings.Fields(text)
		} else {
			fields = strings.Split(text, s.Delimiter)
		}
		row := make([]float64, len(fields))
		for index, field := range fields {
			row[index], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(modred.ErrData, "%s:%d: %v", src, line, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, errors.Wrapf(scanner.Err(), "read %s", src)
}

// BinaryStore uses the gonum binary matrix format.
type BinaryStore struct{}

// Save writes m to dst.
func (BinaryStore) Save(m mat.Matrix, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	w := bufio.NewWriter(f)
	if _, err := mat.DenseCopyOf(m).MarshalBinaryTo(w); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", dst)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", dst)
	}
	return errors.Wrapf(f.Close(), "close %s", dst)
}

// Load reads a matrix written by Save.
func (BinaryStore) Load(src string) (*mat.Dense, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", src)
	}
	defer f.Close()
	var m mat.Dense
	if _, err := m.UnmarshalBinaryFrom(bufio.NewReader(f)); err != nil {
		return nil, errors.Wrapf(modred.ErrData, "decode %s: %v", src, err)
	}
	return &m, nil
}

// Values returns the entries of a single row or single column matrix, the
// shape singular values are stored in.
func Values(m mat.Matrix) ([]float64, error) {
	rows, cols := m.Dims()
	switch {
	case cols == 1:
		return mat.Col(nil, 0, m), nil
	case rows == 1:
		return mat.Row(nil, 0, m), nil
	default:
		return nil, errors.Wrapf(modred.ErrData, "expected a vector, got a %dx%d matrix", rows, cols)
	}
}

// Column returns values as a column matrix.
func Column(values []float64) *mat.Dense {
	data := make([]float64, len(values))
	copy(data, values)
	return mat.NewDense(len(data), 1, data)
}

// intVerb matches one printf integer verb with optional flags and width.
var intVerb = regexp.MustCompile(`%[-+ #0]*[0-9]*d`)

// Expand fills a printf style destination pattern such as "mode_%03d.txt".
// The pattern must hold exactly one integer verb; %% is a literal percent.
func Expand(pattern string, index int) (string, error) {
	rest := strings.ReplaceAll(pattern, "%%", "")
	if len(intVerb.FindAllString(rest, -1)) != 1 || strings.Count(rest, "%") != 1 {
		return "", errors.Wrapf(modred.ErrConfiguration, "pattern %q needs exactly one integer verb such as %%03d", pattern)
	}
	return fmt.Sprintf(pattern, index), nil
}
