package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.25, c.ML.Training.TestRatio)
	assert.Equal(t, int64(42), c.ML.Seed)
	assert.Equal(t, "models/horse_colic_pipeline.bin", c.ML.ModelPath)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  port: 9090
  request_timeout: 2s
ml:
  model_path: out/pipe.bin
  cache_size: 0
  training:
    test_ratio: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Http.Port)
	assert.Equal(t, 2*time.Second, c.Http.RequestTimeout)
	assert.Equal(t, "out/pipe.bin", c.ML.ModelPath)
	assert.Equal(t, 0, c.ML.CacheSize)
	assert.Equal(t, 0.3, c.ML.Training.TestRatio)
	// untouched fields keep their defaults
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Http.Port, c.Http.Port)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"HORSECOLIC_HTTP_PORT":      "7000",
		"HORSECOLIC_MODEL_PATH":     "/tmp/p.bin",
		"HORSECOLIC_TEST_RATIO":     "0.2",
		"HORSECOLIC_WATCH_ARTIFACT": "false",
	}
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, 7000, c.Http.Port)
	assert.Equal(t, "/tmp/p.bin", c.ML.ModelPath)
	assert.Equal(t, 0.2, c.ML.Training.TestRatio)
	assert.False(t, c.ML.WatchArtifact)
}

func TestEnvOverrideErrors(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		switch k {
		case "HORSECOLIC_HTTP_PORT":
			return "eighty", true
		case "HORSECOLIC_SEED":
			return "x", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HORSECOLIC_HTTP_PORT")
	assert.Contains(t, err.Error(), "HORSECOLIC_SEED")
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Http.Port = 0
	c.ML.Training.TestRatio = 1
	c.ML.ModelPath = ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.port")
	assert.Contains(t, err.Error(), "test_ratio")
	assert.Contains(t, err.Error(), "model_path")
}

func TestResolve(t *testing.T) {
	c := Default()
	c.ML.ModelPath = "models/p.bin"
	c.Resolve(filepath.Join("..", "config.yaml"))
	assert.Equal(t, filepath.Join("..", "models", "p.bin"), c.ML.ModelPath)

	c = Default()
	c.Resolve("config.yaml")
	assert.Equal(t, "models/horse_colic_pipeline.bin", c.ML.ModelPath)
}
