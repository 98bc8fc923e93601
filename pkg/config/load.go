package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PADREEL_"

// Config is the runtime configuration. Zero values are filled from the constants above.
type Config struct {
	Encoder EncoderConfig `yaml:"encoder"`
	Fake    FakeConfig    `yaml:"fake"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	OutDir  string        `yaml:"out_dir"`
}

type EncoderConfig struct {
	Backend    string `yaml:"backend"` // ffmpeg | gst
	FFmpegPath string `yaml:"ffmpeg_path"`
	Profile    string `yaml:"profile"` // preferred profile name
}

type FakeConfig struct {
	LargeFileThreshold int64 `yaml:"large_file_threshold"`
	MaxAllocBytes      int64 `yaml:"max_alloc_bytes"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	RateLimit     int    `yaml:"rate_limit"` // generate requests per minute per IP
	EnableMetrics bool   `yaml:"enable_metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

func Default() Config {
	return Config{
		Encoder: EncoderConfig{
			Backend:    "ffmpeg",
			FFmpegPath: "ffmpeg",
			Profile:    "mp4-h264",
		},
		Fake: FakeConfig{
			LargeFileThreshold: LargeFileThreshold,
			MaxAllocBytes:      MaxAllocBytes,
		},
		Server: ServerConfig{
			Addr:          ":8088",
			RateLimit:     10,
			EnableMetrics: true,
		},
		Log: LogConfig{
			Format: "text",
		},
		OutDir: PathOutDir,
	}
}

// Load reads the optional YAML file at path, then .env, then PADREEL_* variables.
// A missing file at path is an error, an empty path is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Encoder.Backend == "" {
		c.Encoder.Backend = d.Encoder.Backend
	}
	if c.Encoder.FFmpegPath == "" {
		c.Encoder.FFmpegPath = d.Encoder.FFmpegPath
	}
	if c.Fake.LargeFileThreshold <= 0 {
		c.Fake.LargeFileThreshold = d.Fake.LargeFileThreshold
	}
	if c.Fake.MaxAllocBytes <= 0 {
		c.Fake.MaxAllocBytes = d.Fake.MaxAllocBytes
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = d.Server.RateLimit
	}
	if c.OutDir == "" {
		c.OutDir = d.OutDir
	}
}

func (c Config) Validate() error {
	switch c.Encoder.Backend {
	case "ffmpeg", "gst":
	default:
		return fmt.Errorf("config: unknown encoder backend %q (want ffmpeg or gst)", c.Encoder.Backend)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Fake.MaxAllocBytes < c.Fake.LargeFileThreshold {
		return fmt.Errorf("config: max_alloc_bytes (%d) below large_file_threshold (%d)",
			c.Fake.MaxAllocBytes, c.Fake.LargeFileThreshold)
	}
	return nil
}

func applyEnv(c *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENCODER", &c.Encoder.Backend)
	str("FFMPEG", &c.Encoder.FFmpegPath)
	str("PROFILE", &c.Encoder.Profile)
	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("OUT_DIR", &c.OutDir)

	for name, dst := range map[string]*int64{
		"LARGE_FILE_THRESHOLD": &c.Fake.LargeFileThreshold,
		"MAX_ALLOC_BYTES":      &c.Fake.MaxAllocBytes,
	} {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}
	if v, ok := os.LookupEnv(envPrefix + "RATE_LIMIT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sRATE_LIMIT: %w", envPrefix, err)
		}
		c.Server.RateLimit = n
	}
	return nil
}
