package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/config"
)

func TestNew_NilMap(t *testing.T) {
	cfg := config.New(nil)
	require.NotNil(t, cfg.Raw())
	assert.False(t, cfg.Has("anything"))
}

func TestString(t *testing.T) {
	cfg := config.New(map[string]any{"mode": "pull", "count": 3})

	assert.Equal(t, "pull", cfg.String("mode", "push"))
	assert.Equal(t, "push", cfg.String("missing", "push"))
	assert.Equal(t, "x", cfg.String("count", "x"), "wrong type falls back")
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"string", "1.5s", 1500 * time.Millisecond},
		{"string ms", "250ms", 250 * time.Millisecond},
		{"negative string", "-5s", -5 * time.Second},
		{"int is milliseconds", 2000, 2 * time.Second},
		{"int64 is milliseconds", int64(750), 750 * time.Millisecond},
		{"float is milliseconds", 1.5, 1500 * time.Microsecond},
		{"zero", 0, 0},
		{"duration", 3 * time.Second, 3 * time.Second},
		{"bad string", "soon", time.Minute},
		{"wrong type", true, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"d": tt.value})
			assert.Equal(t, tt.want, cfg.Duration("d", time.Minute))
		})
	}
	assert.Equal(t, time.Minute, config.New(nil).Duration("d", time.Minute))
}

func TestBool(t *testing.T) {
	cfg := config.New(map[string]any{"on": true, "text": "true"})
	assert.True(t, cfg.Bool("on", false))
	assert.False(t, cfg.Bool("text", false))
	assert.True(t, cfg.Bool("missing", true))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 40, 40},
		{"int64", int64(9223372036854775807), 9223372036854775807},
		{"whole float", float64(1e10), 10000000000},
		{"fractional float", 2.5, -1},
		{"string", "40", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"n": tt.value})
			assert.Equal(t, tt.want, cfg.Int("n", -1))
		})
	}
}

func TestFloat(t *testing.T) {
	cfg := config.New(map[string]any{"f": 1.5, "i": 2, "i64": int64(3), "s": "4"})
	assert.Equal(t, 1.5, cfg.Float("f", 0))
	assert.Equal(t, 2.0, cfg.Float("i", 0))
	assert.Equal(t, 3.0, cfg.Float("i64", 0))
	assert.Equal(t, 9.0, cfg.Float("s", 9))
}

func TestStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"typed": []string{"input", "label"},
		"any":   []any{"button", "select"},
		"mixed": []any{"button", 1},
		"empty": []any{},
	})
	def := []string{"default"}

	assert.Equal(t, []string{"input", "label"}, cfg.StringSlice("typed", def))
	assert.Equal(t, []string{"button", "select"}, cfg.StringSlice("any", def))
	assert.Equal(t, def, cfg.StringSlice("mixed", def))
	assert.Empty(t, cfg.StringSlice("empty", def))
	assert.Equal(t, def, cfg.StringSlice("missing", def))
}

func TestDottedKeys(t *testing.T) {
	cfg := config.New(map[string]any{
		"collab": map[string]any{
			"mode":  "pull",
			"retry": map[string]any{"attempts": 6},
		},
		"store.driver": "sqlite",
		"store":        map[string]any{"driver": "file"},
		"leaf":         "value",
	})

	assert.Equal(t, "pull", cfg.String("collab.mode", ""))
	assert.Equal(t, 6, cfg.Int("collab.retry.attempts", 0))
	assert.Equal(t, "sqlite", cfg.String("store.driver", ""), "literal key wins")
	assert.False(t, cfg.Has("leaf.deeper"))
	assert.False(t, cfg.Has("collab.missing"))

	sub := cfg.Sub("collab")
	assert.Equal(t, "pull", sub.String("mode", ""))
	assert.Equal(t, 6, sub.Sub("retry").Int("attempts", 0))
	assert.False(t, cfg.Sub("leaf").Has("anything"))
	assert.False(t, cfg.Sub("missing").Has("anything"))
}

func TestAny(t *testing.T) {
	cfg := config.New(map[string]any{"v": []int{1}})
	assert.Equal(t, []int{1}, cfg.Any("v", nil))
	assert.Equal(t, "d", cfg.Any("missing", "d"))
}

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
historyLimit: 25
collab:
  mode: pull
  pollInterval: 500ms
allowedTypes:
  - input
  - button
`))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Int("historyLimit", 0))
	assert.Equal(t, "pull", cfg.String("collab.mode", ""))
	assert.Equal(t, 500*time.Millisecond, cfg.Duration("collab.pollInterval", 0))
	assert.Equal(t, []string{"input", "button"}, cfg.StringSlice("allowedTypes", nil))

	empty, err := config.FromYAML(nil)
	require.NoError(t, err)
	assert.False(t, empty.Has("anything"))

	_, err = config.FromYAML([]byte(`invalid: yaml: content:`))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"historyLimit": 25, "store": {"driver": "memory"}, "autosaveDelay": 1500}`))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Int("historyLimit", 0), "JSON numbers are float64")
	assert.Equal(t, "memory", cfg.String("store.driver", ""))
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("autosaveDelay", 0))

	_, err = config.FromJSON([]byte(`{invalid json}`))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name   string
		path   string
		want   string
		errMsg string
	}{
		{"yaml", write("flowdoc.yaml", "name: fromyaml"), "fromyaml", ""},
		{"yml", write("flowdoc.yml", "name: fromyml"), "fromyml", ""},
		{"json", write("flowdoc.json", `{"name": "fromjson"}`), "fromjson", ""},
		{"upper case extension", write("upper.YAML", "name: upper"), "upper", ""},
		{"unsupported extension", write("flowdoc.txt", "name: x"), "", "unsupported config file extension"},
		{"missing file", filepath.Join(dir, "nope.yaml"), "", "read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromFile(tt.path)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.String("name", ""))
		})
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := config.ParseOverrides([]string{
		"collab.mode=pull",
		"collab.maxReconnects=3",
		"store.keepRevisions=5",
		"debug=true",
		"store.dsn=",
		"name={not: a map}",
	})
	require.NoError(t, err)
	assert.Equal(t, "pull", cfg.String("collab.mode", ""))
	assert.Equal(t, 3, cfg.Int("collab.maxReconnects", 0))
	assert.Equal(t, 5, cfg.Sub("store").Int("keepRevisions", 0))
	assert.True(t, cfg.Bool("debug", false))
	assert.Equal(t, "", cfg.String("store.dsn", "unset"))
	assert.Equal(t, "{not: a map}", cfg.String("name", ""))

	for _, bad := range []string{"novalue", "=x", ".a=1", "a.=1"} {
		_, err := config.ParseOverrides([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestMerge(t *testing.T) {
	base := config.New(map[string]any{
		"historyLimit": 40,
		"collab":       map[string]any{"mode": "push", "baseUrl": "https://hub"},
	})
	over, err := config.ParseOverrides([]string{"collab.mode=pull", "store.driver=memory"})
	require.NoError(t, err)

	got := base.Merge(over)
	assert.Equal(t, 40, got.Int("historyLimit", 0))
	assert.Equal(t, "pull", got.String("collab.mode", ""))
	assert.Equal(t, "https://hub", got.String("collab.baseUrl", ""))
	assert.Equal(t, "memory", got.String("store.driver", ""))

	assert.Equal(t, "push", base.String("collab.mode", ""), "base unchanged")
	assert.False(t, base.Has("store.driver"))
}
