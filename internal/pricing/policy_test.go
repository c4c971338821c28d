package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicy(t *testing.T) {
	t.Run("loads thresholds and aliases", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
pricing:
  high_threshold: 90
  floor_threshold: 70
  top_k: 5
  unit_aliases:
    ounce: oz
    pound: lb
`), 0o644))

		p, err := LoadPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, 90.0, p.HighThreshold)
		assert.Equal(t, 70.0, p.FloorThreshold)
		assert.Equal(t, 5, p.TopK)
		assert.Equal(t, "OZ", p.UnitAliases["OUNCE"])
		assert.Equal(t, "LB", p.UnitAliases["POUND"])
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pricing: [not a map"), 0o644))
		_, err := LoadPolicy(path)
		assert.Error(t, err)
	})
}

func TestWithPolicyOverrides(t *testing.T) {
	r := NewResolver(WithPolicy(&Policy{HighThreshold: 92, TopK: 4}))
	assert.Equal(t, 92.0, r.highThreshold)
	assert.Equal(t, 60.0, r.floorThreshold)
	assert.Equal(t, 4, r.topK)

	// Nil policy keeps defaults.
	r = NewResolver(WithPolicy(nil))
	assert.Equal(t, 85.0, r.highThreshold)
}
