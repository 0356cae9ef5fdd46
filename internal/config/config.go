package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds all configuration for the worldstream server. It is
// loaded once at startup and treated as immutable afterwards; changing
// stream parameters mid-session is not supported.
type Config struct {
	Server  ServerConfig
	Stream  StreamConfig
	Terrain TerrainConfig
	Viewer  ViewerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
}

// StreamConfig holds chunk streaming parameters. A zero extent would
// make chunk-coordinate arithmetic divide by zero, so every field is
// validated before the manager is built.
type StreamConfig struct {
	ChunkTileWidth  int     `validate:"required,gt=0"`
	ChunkTileHeight int     `validate:"required,gt=0"`
	BufferRadius    int     `validate:"required,gt=0"`
	TilePixelExtent float64 `validate:"required,gt=0"`
}

// TerrainConfig holds noise parameters for the terrain classifier.
type TerrainConfig struct {
	Seed      int64
	Frequency float64 `validate:"required,gt=0"`
	Algorithm string  `validate:"required,oneof=simplex perlin"`
}

// ViewerConfig holds viewer endpoint configuration. AuthSecret is
// optional; when empty the /ws endpoint accepts unauthenticated
// connections.
type ViewerConfig struct {
	AuthSecret      string
	TokenExpiration time.Duration
	RateLimit       int           `validate:"gt=0"`
	RateLimitWindow time.Duration `validate:"gt=0"`
	ProfileInterval time.Duration
}

// ChunkPixelWidth returns the chunk's world-space width in pixels.
func (s *StreamConfig) ChunkPixelWidth() float64 {
	return float64(s.ChunkTileWidth) * s.TilePixelExtent
}

// ChunkPixelHeight returns the chunk's world-space height in pixels.
func (s *StreamConfig) ChunkPixelHeight() float64 {
	return float64(s.ChunkTileHeight) * s.TilePixelExtent
}

// IsDevelopment returns true if running in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables and an optional
// .env file in the working directory, then validates it. An incomplete
// stream configuration is a fatal precondition: the caller must refuse
// to start rather than run with undefined window arithmetic.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] no .env file found (environment variables still apply): %v", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Stream: StreamConfig{
			ChunkTileWidth:  getIntEnv("CHUNK_TILE_WIDTH", 32),
			ChunkTileHeight: getIntEnv("CHUNK_TILE_HEIGHT", 32),
			BufferRadius:    getIntEnv("BUFFER_RADIUS", 2),
			TilePixelExtent: getFloatEnv("TILE_PIXEL_EXTENT", 16),
		},
		Terrain: TerrainConfig{
			Seed:      getInt64Env("NOISE_SEED", 0),
			Frequency: getFloatEnv("NOISE_FREQUENCY", 0.05),
			Algorithm: getEnv("NOISE_ALGORITHM", "simplex"),
		},
		Viewer: ViewerConfig{
			AuthSecret:      getEnv("VIEWER_AUTH_SECRET", ""),
			TokenExpiration: getDurationEnv("VIEWER_TOKEN_EXPIRATION", 12*time.Hour),
			RateLimit:       getIntEnv("VIEWER_RATE_LIMIT", 120),
			RateLimitWindow: getDurationEnv("VIEWER_RATE_LIMIT_WINDOW", time.Minute),
			ProfileInterval: getDurationEnv("PROFILE_LOG_INTERVAL", 0),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(&c.Stream); err != nil {
		return errors.Wrap(err, "stream config")
	}
	if err := v.Struct(&c.Terrain); err != nil {
		return errors.Wrap(err, "terrain config")
	}
	if err := v.Struct(&c.Viewer); err != nil {
		return errors.Wrap(err, "viewer config")
	}
	return nil
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Config] invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("[Config] invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("[Config] invalid float value for %s: %s, using default: %f", key, value, defaultValue)
		return defaultValue
	}
	return floatValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[Config] invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return duration
}
