// Package conf 加载执行器与命令行工具的运行配置。
// 支持 YAML / JSON 文件，按扩展名自动检测格式。
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// delim koanf 配置路径分隔符。
const delim = "."

var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("conf: empty config path")

	// ErrUnsupportedFormat 表示配置格式不受支持。
	ErrUnsupportedFormat = errors.New("conf: unsupported config format")

	// ErrLoadFailed 表示配置文件读取失败。
	ErrLoadFailed = errors.New("conf: load config failed")

	// ErrParseFailed 表示配置内容解析失败。
	ErrParseFailed = errors.New("conf: parse config failed")

	// ErrMissingBaseURL 表示服务基础 URL 未配置。
	ErrMissingBaseURL = errors.New("conf: service.base_url is required")

	// ErrMissingUserID 表示用户 ID 未配置。
	ErrMissingUserID = errors.New("conf: session.user_id is required")
)

// Service 传输客户端配置。
type Service struct {
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	AllowInsecure bool          `koanf:"allow_insecure"`
}

// Session 会话控制器配置。
type Session struct {
	UserID       string        `koanf:"user_id"`
	APIKey       string        `koanf:"api_key"`
	DeviceID     string        `koanf:"device_id"`
	RegisterPath string        `koanf:"register_path"`
	MaxAttempts  int           `koanf:"max_attempts"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	TTL          time.Duration `koanf:"ttl"`
}

// Retry 执行器重试策略配置。
type Retry struct {
	MaxRetries        int           `koanf:"max_retries"`
	RetryableStatuses []int         `koanf:"retryable_statuses"`
	InitialDelay      time.Duration `koanf:"initial_delay"`
	MaxDelay          time.Duration `koanf:"max_delay"`
	Multiplier        float64       `koanf:"multiplier"`
	Jitter            float64       `koanf:"jitter"`
}

// Conn 连接监控配置。
type Conn struct {
	// Target 探测目标地址（host:port）。空值表示不启用连接监控。
	Target   string        `koanf:"target"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Log 日志输出配置（lumberjack 滚动文件）。
type Log struct {
	// Level 日志级别：debug / info / warn / error。
	Level string `koanf:"level"`

	// File 日志文件路径。空值输出到 stderr。
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// Settings 完整运行配置。
type Settings struct {
	Service Service `koanf:"service"`
	Session Session `koanf:"session"`
	Retry   Retry   `koanf:"retry"`
	Conn    Conn    `koanf:"conn"`
	Log     Log     `koanf:"log"`
}

// Default 返回带默认值的配置。
func Default() Settings {
	return Settings{
		Service: Service{
			Timeout: 30 * time.Second,
		},
		Session: Session{
			RegisterPath: "/v1/sessions",
			MaxAttempts:  3,
			RetryDelay:   200 * time.Millisecond,
			TTL:          30 * time.Minute,
		},
		Retry: Retry{
			MaxRetries:   3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			Jitter:       0.1,
		},
		Conn: Conn{
			Interval: 5 * time.Second,
			Timeout:  2 * time.Second,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load 从文件加载配置。
// 未出现在文件中的字段保留 Default 的默认值。
func Load(path string) (Settings, error) {
	if path == "" {
		return Settings{}, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return Settings{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return LoadBytes(data, format)
}

// LoadBytes 从字节数据加载配置，需要显式指定格式。
// 适用于 K8s ConfigMap 等非文件来源。
func LoadBytes(data []byte, format Format) (Settings, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = kyaml.Parser()
	case FormatJSON:
		parser = kjson.Parser()
	default:
		return Settings{}, ErrUnsupportedFormat
	}

	k := koanf.New(delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	settings := Default()
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate 校验必填字段。
func (s Settings) Validate() error {
	if s.Service.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if s.Session.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}
