package wlsketch

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages engine configuration using Viper.
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults.
func NewConfig() *Config {
	v := viper.New()

	// Sketch parameters
	v.SetDefault("sketch.size", 2000)
	v.SetDefault("sketch.k_hops", 3)
	v.SetDefault("sketch.decay", 10)
	v.SetDefault("sketch.window", 1)
	v.SetDefault("sketch.lambda", 0.02)
	v.SetDefault("sketch.chunkify", false)
	v.SetDefault("sketch.chunk_size", 5)
	v.SetDefault("sketch.memory", false)
	v.SetDefault("sketch.pregen", 10000)

	// Performance parameters
	v.SetDefault("performance.num_workers", 1)
	v.SetDefault("performance.batch_size", 1000)
	v.SetDefault("performance.max_iterations", 1 << 30)

	// Input / output
	v.SetDefault("input.base", "")
	v.SetDefault("input.stream", "")
	v.SetDefault("output.sketch", "sketch.txt")

	// Logging parameters
	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for sketch parameters
func (c *Config) SketchSize() int  { return c.v.GetInt("sketch.size") }
func (c *Config) KHops() int       { return c.v.GetInt("sketch.k_hops") }
func (c *Config) DecayEvery() int  { return c.v.GetInt("sketch.decay") }
func (c *Config) Window() int      { return c.v.GetInt("sketch.window") }
func (c *Config) Lambda() float64  { return c.v.GetFloat64("sketch.lambda") }
func (c *Config) Chunkify() bool   { return c.v.GetBool("sketch.chunkify") }
func (c *Config) ChunkSize() int   { return c.v.GetInt("sketch.chunk_size") }
func (c *Config) Memory() bool     { return c.v.GetBool("sketch.memory") }
func (c *Config) Pregen() int      { return c.v.GetInt("sketch.pregen") }

func (c *Config) NumWorkers() int    { return c.v.GetInt("performance.num_workers") }
func (c *Config) BatchSize() int     { return c.v.GetInt("performance.batch_size") }
func (c *Config) MaxIterations() int { return c.v.GetInt("performance.max_iterations") }

func (c *Config) BaseFile() string   { return c.v.GetString("input.base") }
func (c *Config) StreamFile() string { return c.v.GetString("input.stream") }
func (c *Config) SketchFile() string { return c.v.GetString("output.sketch") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Validate checks option ranges and cross-option requirements.
func (c *Config) Validate() error {
	if c.SketchSize() <= 0 {
		return fmt.Errorf("sketch.size must be positive, got %d", c.SketchSize())
	}
	if c.KHops() <= 0 {
		return fmt.Errorf("sketch.k_hops must be positive, got %d", c.KHops())
	}
	if c.DecayEvery() < 0 {
		return fmt.Errorf("sketch.decay must be non-negative, got %d", c.DecayEvery())
	}
	if c.Window() <= 0 {
		return fmt.Errorf("sketch.window must be positive, got %d", c.Window())
	}
	if c.Lambda() < 0 {
		return fmt.Errorf("sketch.lambda must be non-negative, got %f", c.Lambda())
	}
	if c.Chunkify() && c.ChunkSize() <= 0 {
		return fmt.Errorf("sketch.chunk_size must be positive when chunkify is on, got %d", c.ChunkSize())
	}
	if c.Memory() && c.Pregen() <= 0 {
		return fmt.Errorf("sketch.pregen must be positive when memory mode is on, got %d", c.Pregen())
	}
	if c.NumWorkers() <= 0 {
		return fmt.Errorf("performance.num_workers must be positive, got %d", c.NumWorkers())
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "wlsketch").Logger()
}
