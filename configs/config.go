// Package configs provides the application configuration for guardcache.
// It loads a file (YAML or JSON) layered over the defaults, applies environment
// overrides prefixed with GUARDCACHE_, validates the result and builds the
// process logger. The cache section maps directly onto cache.Config.
//
// Package configs 提供guardcache的应用配置。
// 它在默认值之上加载配置文件（YAML或JSON），应用以GUARDCACHE_为前缀的环境变量覆盖，
// 校验结果并构建进程日志器。cache部分直接映射到cache.Config。
package configs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Humphrey-He/guardcache/pkg/cache"
)

// EnvPrefix is the prefix of environment variables that override file values.
// The key cache.max_entries is read from GUARDCACHE_CACHE_MAX_ENTRIES.
//
// EnvPrefix 是覆盖配置文件值的环境变量前缀。
// 键cache.max_entries从GUARDCACHE_CACHE_MAX_ENTRIES读取。
const EnvPrefix = "GUARDCACHE"

// Config represents the complete application configuration.
//
// Config 表示完整的应用配置。
type Config struct {
	// Cache contains the engine settings
	// Cache 包含缓存引擎设置
	Cache cache.Config `json:"cache" yaml:"cache" mapstructure:"cache"`

	// Log configures the process logger
	// Log 配置进程日志器
	Log LogConfig `json:"log" yaml:"log" mapstructure:"log"`

	// Metrics configures the Prometheus collector and endpoint
	// Metrics 配置Prometheus采集器和端点
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Server configures the diagnostics HTTP server
	// Server 配置诊断HTTP服务
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
}

// LogConfig contains logging settings.
//
// LogConfig 包含日志设置。
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error
	// Level 是zerolog级别名称
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" for human readable output or "json"
	// Format 为"console"（可读输出）或"json"
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is "stdout" or "stderr"
	// Output 为"stdout"或"stderr"
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// MetricsConfig contains metrics settings.
//
// MetricsConfig 包含指标设置。
type MetricsConfig struct {
	// Enable registers the cache collector with Prometheus
	// Enable 是否向Prometheus注册缓存采集器
	Enable bool `json:"enable" yaml:"enable" mapstructure:"enable"`

	// Path is the HTTP path of the scrape endpoint
	// Path 是抓取端点的HTTP路径
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Group is the collector label, the cache name when empty
	// Group 是采集器标签，为空时使用缓存名称
	Group string `json:"group" yaml:"group" mapstructure:"group"`
}

// ServerConfig contains settings of the diagnostics server.
//
// ServerConfig 包含诊断服务的设置。
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with default values.
//
// DefaultConfig 返回具有默认值的Config。
//
// Returns:
//   - *Config: A configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Cache: *cache.NewDefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enable: true,
			Path:   "/metrics",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// CacheConfig returns the engine configuration with the metrics group resolved.
//
// CacheConfig 返回解析了指标分组的引擎配置。
func (c *Config) CacheConfig() cache.Config {
	cfg := c.Cache
	cfg.MetricsGroup = ""
	if c.Metrics.Enable {
		cfg.MetricsGroup = c.Metrics.Group
		if cfg.MetricsGroup == "" {
			cfg.MetricsGroup = cfg.Name
		}
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML or JSON file.
// Values missing from the file keep their defaults and environment
// variables take precedence over the file.
//
// LoadFromFile 从YAML或JSON文件加载配置。
// 文件中缺失的值保留默认值，环境变量优先于文件。
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the file cannot be read, parsed or validated
func LoadFromFile(path string) (*Config, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file, format)
}

// LoadFromReader loads configuration from a reader.
//
// LoadFromReader 从读取器加载配置。
//
// Parameters:
//   - r: The reader providing configuration data
//   - format: "yaml", "yml" or "json"
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if parsing or validation fails
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	format = strings.ToLower(strings.TrimPrefix(format, "."))
	switch format {
	case "yaml", "yml", "json":
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
	v.SetConfigType(format)
	if err := v.MergeConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return decode(v)
}

// LoadFromEnv returns the defaults with environment overrides applied.
//
// LoadFromEnv 返回应用了环境变量覆盖的默认配置。
func LoadFromEnv() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// newViper seeds a viper instance with every default key so that
// AutomaticEnv can override keys the file does not mention.
func newViper() (*viper.Viper, error) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, DefaultConfig()); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(&buf); err != nil {
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func formatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// SaveToFile writes the configuration as YAML.
//
// SaveToFile 将配置以YAML格式写入文件。
//
// Parameters:
//   - config: The configuration to save
//   - path: Destination path
//
// Returns:
//   - error: An error if the file cannot be written
func SaveToFile(config *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := WriteYAML(file, config); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteYAML encodes the configuration as YAML. Durations are written as Go
// duration strings.
//
// WriteYAML 将配置编码为YAML，时间间隔写成Go时间字符串。
func WriteYAML(w io.Writer, config *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks the configuration for errors.
//
// Validate 检查配置中的错误。
//
// Returns:
//   - error: The first problem found, nil if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: invalid format %q", c.Log.Format)
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("log: invalid output %q", c.Log.Output)
	}
	if c.Metrics.Enable && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics: path must start with '/', got %q", c.Metrics.Path)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server: addr is empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server: shutdown timeout is negative")
	}
	return nil
}

// NewLogger builds the process logger described by cfg.
// An unknown level falls back to info.
//
// NewLogger 根据cfg构建进程日志器。未知级别回退为info。
func NewLogger(cfg LogConfig) zerolog.Logger {
	out := io.Writer(os.Stdout)
	if cfg.Output == "stderr" {
		out = os.Stderr
	}
	return newLogger(cfg, out)
}

func newLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
