package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a viper with the defaults of every option
func testConfig(t *testing.T, settings map[string]interface{}) *viper.Viper {
	t.Helper()
	cfg := viper.New()
	for _, o := range options {
		if _, ok := o.defaultVal.(map[string]string); ok {
			cfg.SetDefault(o.name, "{}")
			continue
		}
		cfg.SetDefault(o.name, o.defaultVal)
	}
	for k, v := range settings {
		cfg.Set(k, v)
	}
	return cfg
}

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()
	optsFile := filepath.Join(dir, "options.toml")
	require.NoError(t, os.WriteFile(optsFile, []byte(`
num_workers = 3
scatter_strategy = "atomic"
coloring_method = "dsatur"
[relaxation_factor]
T = 0.5
phi = 0.9
`), 0o644))

	rc, err := loadRunConfig(testConfig(t, map[string]interface{}{
		"options":    optsFile,
		"relaxation": `{"T": 0.7}`,
		"lumped":     true,
		"cells":      []int{4, 2},
		"coloring":   "welsh_powell",
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, rc.Cells)
	assert.Equal(t, 2, rc.cell(5))
	assert.Equal(t, 0.7, rc.Options.RelaxationFactor("T"), "explicit setting wins")
	assert.Equal(t, 0.9, rc.Options.RelaxationFactor("phi"))
	assert.Equal(t, 3, rc.Options.Workers())
	assert.Equal(t, "atomic", rc.Options.ScatterStrategy)
	assert.Equal(t, "welsh_powell", rc.Options.ColoringMethod, "explicit setting wins")
	assert.True(t, rc.Options.IsLumped("T"))

	// as read from a configuration file
	rc, err = loadRunConfig(testConfig(t, map[string]interface{}{
		"relaxation": map[string]interface{}{"phi": "0.25"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.25, rc.Options.RelaxationFactor("phi"))

	tests := map[string]map[string]interface{}{
		"negative relaxation": {"relaxation": `{"T": -1}`},
		"bad relaxation":      {"relaxation": `{"T": "fast"}`},
		"bad scatter":         {"scatter": "locks"},
		"bad coloring":        {"coloring": "rainbow"},
		"no steps":            {"steps": 0},
		"missing options":     {"options": filepath.Join(dir, "none.toml")},
	}
	for name, settings := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadRunConfig(testConfig(t, settings))
			assert.Error(t, err)
		})
	}
}

func TestAssemble(t *testing.T) {
	logger, hook := test.NewNullLogger()
	for _, m := range []string{"line", "quad", "tri", "hex"} {
		t.Run(m, func(t *testing.T) {
			rc, err := loadRunConfig(testConfig(t, map[string]interface{}{
				"mesh":    m,
				"cells":   []int{3, 2, 2},
				"flux":    1.0,
				"steps":   2,
				"solve":   true,
				"workers": 2,
			}))
			require.NoError(t, err)
			res, err := Assemble(context.Background(), rc, logger)
			require.NoError(t, err)
			require.Len(t, res.Residuals, 2)
			for step, norms := range res.Residuals {
				require.Len(t, norms, 2)
				assert.Greater(t, norms[0], 0.0, "step %d", step)
				// every term is linear in the scalar
				assert.Less(t, norms[1], 1e-8*norms[0], "step %d", step)
			}
		})
	}
	assert.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	rc, err := loadRunConfig(testConfig(t, map[string]interface{}{"mesh": "missing.neu"}))
	require.NoError(t, err)
	_, err = Assemble(context.Background(), rc, logger)
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Contains(t, out.String(), "cvfemasm v"+Version)

	Root.SetArgs([]string{"assemble", "--mesh", "quad", "--cells", "2", "--steps", "1",
		"--iterations", "1", "--coloring", "dsatur", "--log_level", "warn"})
	require.NoError(t, Root.Execute())
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	Root.SetArgs([]string{"assemble", "--log_level", "loud"})
	assert.Error(t, Root.Execute())
}
