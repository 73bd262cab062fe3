package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// Config is the shared configuration of the trainer and the server.
type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigin  string        `yaml:"allowed_origin"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	ML struct {
		ModelPath       string  `yaml:"model_path"`
		DataPath        string  `yaml:"data_path"`
		MaxTreeDepth    int     `yaml:"max_tree_depth"`
		MinSamplesSplit int     `yaml:"min_samples_split"`
		MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
		Seed            int64   `yaml:"seed"`
		CacheSize       int     `yaml:"cache_size"`
		WatchArtifact   bool    `yaml:"watch_artifact"`
		Training        struct {
			TestRatio float64 `yaml:"test_ratio"`
		} `yaml:"training"`
	} `yaml:"ml"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	var c Config
	c.Database.Path = "data/horsecolic.db"
	c.Http.Port = 8080
	c.Http.ReadTimeout = 10 * time.Second
	c.Http.WriteTimeout = 10 * time.Second
	c.Http.RequestTimeout = 5 * time.Second
	c.Http.MaxBodyBytes = 1 << 20
	c.Http.AllowedOrigin = "*"
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.ML.ModelPath = "models/horse_colic_pipeline.bin"
	c.ML.DataPath = "data/horse.csv"
	c.ML.MinSamplesSplit = 2
	c.ML.MinSamplesLeaf = 1
	c.ML.Seed = 42
	c.ML.CacheSize = 1024
	c.ML.WatchArtifact = true
	c.ML.Training.TestRatio = 0.25
	return &c
}

// Locate returns path if it exists, else the same name one directory up, so
// binaries started from cmd/ still find the root config.
func Locate(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		parent := filepath.Join("..", path)
		if _, err := os.Stat(parent); err == nil {
			return parent
		}
	}
	return path
}

// Load reads the YAML file at path over the defaults, then applies
// HORSECOLIC_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var result *multierror.Error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("HORSECOLIC_DB_PATH", &c.Database.Path)
	num("HORSECOLIC_HTTP_PORT", &c.Http.Port)
	str("HORSECOLIC_LOG_LEVEL", &c.Log.Level)
	str("HORSECOLIC_LOG_FILE", &c.Log.File)
	str("HORSECOLIC_MODEL_PATH", &c.ML.ModelPath)
	str("HORSECOLIC_DATA_PATH", &c.ML.DataPath)
	num("HORSECOLIC_MAX_TREE_DEPTH", &c.ML.MaxTreeDepth)
	num("HORSECOLIC_CACHE_SIZE", &c.ML.CacheSize)

	if v, ok := lookup("HORSECOLIC_TEST_RATIO"); ok && v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("HORSECOLIC_TEST_RATIO: %w", err))
		} else {
			c.ML.Training.TestRatio = f
		}
	}
	if v, ok := lookup("HORSECOLIC_SEED"); ok && v != "" {
		n, err := cast.ToInt64E(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("HORSECOLIC_SEED: %w", err))
		} else {
			c.ML.Seed = n
		}
	}
	if v, ok := lookup("HORSECOLIC_WATCH_ARTIFACT"); ok && v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("HORSECOLIC_WATCH_ARTIFACT: %w", err))
		} else {
			c.ML.WatchArtifact = b
		}
	}
	if v, ok := lookup("HORSECOLIC_REQUEST_TIMEOUT"); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("HORSECOLIC_REQUEST_TIMEOUT: %w", err))
		} else {
			c.Http.RequestTimeout = d
		}
	}
	return result.ErrorOrNil()
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.ML.ModelPath == "" {
		result = multierror.Append(result, fmt.Errorf("ml.model_path is required"))
	}
	if r := c.ML.Training.TestRatio; r <= 0 || r >= 1 {
		result = multierror.Append(result, fmt.Errorf("ml.training.test_ratio %v must be in (0,1)", r))
	}
	if c.ML.MaxTreeDepth < 0 {
		result = multierror.Append(result, fmt.Errorf("ml.max_tree_depth must not be negative"))
	}
	if c.ML.CacheSize < 0 {
		result = multierror.Append(result, fmt.Errorf("ml.cache_size must not be negative"))
	}
	if c.Http.MaxBodyBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("http.max_body_bytes must be positive"))
	}
	return result.ErrorOrNil()
}

// Resolve rewrites relative paths against the directory of the config file.
func (c *Config) Resolve(configPath string) {
	dir := filepath.Dir(configPath)
	if dir == "." {
		return
	}
	for _, p := range []*string{&c.Database.Path, &c.ML.ModelPath, &c.ML.DataPath, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
