package wlsketch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2000, cfg.SketchSize())
	assert.Equal(t, 3, cfg.KHops())
	assert.Equal(t, 1, cfg.Window())
	assert.False(t, cfg.Chunkify())
	assert.False(t, cfg.Memory())
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		key   string
		value interface{}
	}{
		{"sketch.size", 0},
		{"sketch.k_hops", -1},
		{"sketch.decay", -1},
		{"sketch.window", 0},
		{"sketch.lambda", -0.5},
		{"performance.num_workers", 0},
	}
	for _, tc := range cases {
		cfg := NewConfig()
		cfg.Set(tc.key, tc.value)
		assert.Error(t, cfg.Validate(), "%s=%v", tc.key, tc.value)
	}
}

func TestConfigCrossOptionRequirements(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("sketch.chunkify", true)
	cfg.Set("sketch.chunk_size", 0)
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Set("sketch.memory", true)
	cfg.Set("sketch.pregen", 0)
	assert.Error(t, cfg.Validate())
}

func TestConfigSetOverrides(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("sketch.k_hops", 5)
	assert.Equal(t, 5, cfg.KHops())
	// Viper coerces string flag values.
	cfg.Set("sketch.lambda", "0.25")
	assert.Equal(t, 0.25, cfg.Lambda())
}
