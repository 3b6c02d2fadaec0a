// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "COURIER_CONFIG"

const (
	// DefaultHost and DefaultPort are where the server listens and
	// the client connects when nothing else is configured.
	DefaultHost = "127.0.0.1"
	DefaultPort = 11111

	// DefaultMaxFrameSize is the largest frame either side accepts
	// (10 MiB).
	DefaultMaxFrameSize = 10 * 1024 * 1024
)

// Config is the master configuration for Courier.
type Config struct {
	// Server configures courier-server.
	Server ServerConfig `yaml:"server"`

	// Client configures the courier client.
	Client ClientConfig `yaml:"client"`

	// Logging configures both commands' logs.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the listener and the stores.
type ServerConfig struct {
	// Host is the address to bind. Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is the TCP port to bind. Zero picks a free port.
	// Default: 11111
	Port int `yaml:"port"`

	// FilesDir is where file payloads are stored. Default: files
	FilesDir string `yaml:"files_dir"`

	// ImagesDir is where converted images are stored. Default: images
	ImagesDir string `yaml:"images_dir"`

	// MaxFrameSize bounds incoming frames in bytes. Default: 10 MiB
	MaxFrameSize int `yaml:"max_frame_size"`

	// MaxImagePixels bounds width*height of accepted images. Zero
	// uses the image pipeline's default.
	MaxImagePixels int `yaml:"max_image_pixels"`

	// ReadTimeout closes connections idle for longer. Zero disables.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds each response write. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ClientConfig configures the interactive client.
type ClientConfig struct {
	// Host is the server to connect to. Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is the server port. Default: 11111
	Port int `yaml:"port"`

	// Compression is applied to file and image payloads: none, lz4,
	// zstd, or auto. Default: auto
	Compression string `yaml:"compression"`

	// MaxFrameSize bounds frames in both directions. Default: 10 MiB
	MaxFrameSize int `yaml:"max_frame_size"`

	// Timeout bounds each request/response exchange. Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is auto, text, or json. auto picks text on a terminal
	// and json otherwise. Default: auto
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			FilesDir:     "files",
			ImagesDir:    "images",
			MaxFrameSize: DefaultMaxFrameSize,
			WriteTimeout: 30 * time.Second,
		},
		Client: ClientConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			Compression:  "auto",
			MaxFrameSize: DefaultMaxFrameSize,
			Timeout:      60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the COURIER_CONFIG environment
// variable. It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your courier.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// Resolve loads path if it is non-empty, else the file named by
// COURIER_CONFIG if that is set, else returns Default.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the
// current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so stripping comments and
		// trailing commas lets one decoder handle both.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// directory fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Server.FilesDir = expandVars(c.Server.FilesDir, vars)
	c.Server.ImagesDir = expandVars(c.Server.ImagesDir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ServerAddress returns the server's host:port.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ClientAddress returns the host:port the client connects to.
func (c *Config) ClientAddress() string {
	return net.JoinHostPort(c.Client.Host, strconv.Itoa(c.Client.Port))
}

// maxFrameLimit is the largest length a 4-byte frame header can carry.
const maxFrameLimit = 1<<32 - 1

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.FilesDir == "" {
		errs = append(errs, errors.New("server.files_dir is required"))
	}
	if c.Server.ImagesDir == "" {
		errs = append(errs, errors.New("server.images_dir is required"))
	}
	if c.Server.FilesDir != "" && filepath.Clean(c.Server.FilesDir) == filepath.Clean(c.Server.ImagesDir) {
		errs = append(errs, errors.New("server.files_dir and server.images_dir must differ"))
	}
	if c.Server.MaxFrameSize <= 0 || int64(c.Server.MaxFrameSize) > maxFrameLimit {
		errs = append(errs, fmt.Errorf("server.max_frame_size %d out of range", c.Server.MaxFrameSize))
	}
	if c.Server.MaxImagePixels < 0 {
		errs = append(errs, fmt.Errorf("server.max_image_pixels must not be negative"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}

	if c.Client.Host == "" {
		errs = append(errs, errors.New("client.host is required"))
	}
	if c.Client.Port <= 0 || c.Client.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port %d out of range", c.Client.Port))
	}
	compressionValues := []string{"none", "lz4", "zstd", "auto"}
	if !slices.Contains(compressionValues, c.Client.Compression) {
		errs = append(errs, fmt.Errorf("client.compression must be one of: %v", compressionValues))
	}
	if c.Client.MaxFrameSize <= 0 || int64(c.Client.MaxFrameSize) > maxFrameLimit {
		errs = append(errs, fmt.Errorf("client.max_frame_size %d out of range", c.Client.MaxFrameSize))
	}
	if c.Client.Timeout < 0 {
		errs = append(errs, errors.New("client.timeout must not be negative"))
	}

	levelValues := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levelValues, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levelValues))
	}
	formatValues := []string{"auto", "text", "json"}
	if !slices.Contains(formatValues, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formatValues))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
