package config

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/notargets/CVFEMKernel/field"
	"github.com/notargets/CVFEMKernel/linsys"
	"github.com/notargets/CVFEMKernel/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
coordinates_name = "current_coordinates"
scatter_strategy = "atomic"
coloring_method = "welsh_powell"
num_workers = 3

[relaxation_factor]
temperature = 0.7

[lumped_mass]
enthalpy = true

[shifted_grad_op]
enthalpy = true
`

func TestDecode(t *testing.T) {
	o, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "current_coordinates", o.CoordinatesName)
	assert.Equal(t, 0.7, o.RelaxationFactor("temperature"))
	assert.Equal(t, 1.0, o.RelaxationFactor("velocity"))
	assert.True(t, o.IsLumped("enthalpy"))
	assert.False(t, o.IsLumped("momentum"))
	assert.True(t, o.UseShiftedGradOp("enthalpy"))
	assert.Equal(t, 3, o.Workers())
	s, err := o.Strategy()
	require.NoError(t, err)
	assert.Equal(t, linsys.ScatterAtomic, s)
	m, err := o.Coloring()
	require.NoError(t, err)
	assert.Equal(t, partitions.WelshPowell, m)
}

func TestDefaults(t *testing.T) {
	o, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, field.CoordinatesName, o.CoordinatesName)
	assert.Equal(t, 1.0, o.RelaxationFactor("anything"))
	s, _ := o.Strategy()
	assert.Equal(t, linsys.ScatterColoring, s)
	m, _ := o.Coloring()
	assert.Equal(t, partitions.FirstFit, m)
	assert.GreaterOrEqual(t, o.Workers(), 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name, doc string
	}{
		{"zero relaxation", "[relaxation_factor]\nq = 0.0\n"},
		{"negative workers", "num_workers = -2\n"},
		{"unknown strategy", "scatter_strategy = \"mutex\"\n"},
		{"unknown coloring", "coloring_method = \"rainbow\"\n"},
		{"bad toml", "num_workers = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	o, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, o.RelaxationFactor("temperature"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

// The options and the kernels that read them stay clear of the mesh
// package, whose Gambit reader needs cgo and a system BLAS.
func TestImports_NoMesh(t *testing.T) {
	for _, dir := range []string{".", "../kernel", "../field", "../linsys", "../element", "../timeint", "../partitions"} {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)
		for _, f := range files {
			if strings.HasSuffix(f, "_test.go") {
				continue
			}
			af, err := parser.ParseFile(token.NewFileSet(), f, nil, parser.ImportsOnly)
			require.NoError(t, err)
			for _, imp := range af.Imports {
				path, err := strconv.Unquote(imp.Path.Value)
				require.NoError(t, err)
				assert.NotEqual(t, "github.com/notargets/CVFEMKernel/mesh", path, f)
				assert.False(t, strings.HasPrefix(path, "github.com/notargets/gocfd"), "%s imports %s", f, path)
			}
		}
	}
}
