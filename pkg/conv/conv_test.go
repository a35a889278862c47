package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/activeseg/core"
)

func TestGet(t *testing.T) {
	cfg := map[string]any{"expr": "score > 0.5", "invert": true, "n": 3}
	assert.Equal(t, "score > 0.5", Get(cfg, "expr", ""))
	assert.True(t, Get(cfg, "invert", false))
	assert.Equal(t, "desc", Get(cfg, "order", "desc"))
	assert.Equal(t, "", Get(cfg, "n", ""), "type mismatch falls back to default")
	assert.Equal(t, 7, Get[int](nil, "n", 7))
}

func TestNumbersFromYAMLAndJSON(t *testing.T) {
	var cfg map[string]any
	assert.NoError(t, yaml.Unmarshal([]byte("threshold: 1\nweight: 0.25\ncount: 4\nratio: 2.5\n"), &cfg))

	assert.Equal(t, 1.0, Float(cfg, "threshold", 0))
	assert.Equal(t, 0.25, Float(cfg, "weight", 1))
	assert.Equal(t, 4, Int(cfg, "count", 0))
	assert.Equal(t, 9, Int(cfg, "ratio", 9), "fractional value is not an int")
	assert.Equal(t, 1.5, Float(cfg, "missing", 1.5))

	// encoding/json 把数字解析为 float64
	js := map[string]any{"count": float64(12), "flag": true}
	assert.Equal(t, 12, Int(js, "count", 0))
	assert.Equal(t, 3.0, Float(js, "flag", 3))
}

func TestKeys(t *testing.T) {
	var cfg map[string]any
	assert.NoError(t, yaml.Unmarshal([]byte("keys: [aachen_000001, 42, {x: 1}, frankfurt_000002]\n"), &cfg))
	assert.Equal(t, []core.ImageKey{"aachen_000001", "42", "frankfurt_000002"}, Keys(cfg["keys"]))
	assert.Nil(t, Keys("not a list"))
}

func TestMaps(t *testing.T) {
	var cfg map[string]any
	assert.NoError(t, yaml.Unmarshal([]byte(`
criteria:
  - key: entropy
    weight: 2
  - margin
  - key: confidence
    invert: true
`), &cfg))

	items, ok := Maps(cfg, "criteria")
	assert.True(t, ok)
	if assert.Len(t, items, 2) {
		assert.Equal(t, "entropy", Get(items[0], "key", ""))
		assert.Equal(t, 2.0, Float(items[0], "weight", 1))
		assert.True(t, Get(items[1], "invert", false))
	}

	_, ok = Maps(cfg, "missing")
	assert.False(t, ok)
}
