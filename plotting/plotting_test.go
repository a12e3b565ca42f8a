package plotting

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JIMMY-KSU/modred"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingularValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sv.png")
	require.NoError(t, SingularValues([]float64{10, 1, 0.1, 1e-3, 0}, "Hankel singular values", path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestSingularValuesEmpty(t *testing.T) {
	err := SingularValues(nil, "", filepath.Join(t.TempDir(), "sv.png"))
	assert.True(t, errors.Is(err, modred.ErrData))
}

func TestPlottifyClamps(t *testing.T) {
	pts := plottify([]float64{2, 0, -1e-20})
	assert.Equal(t, 1., pts[0].X)
	assert.Equal(t, 2., pts[0].Y)
	assert.Equal(t, Floor, pts[1].Y)
	assert.Equal(t, Floor, pts[2].Y)
}
