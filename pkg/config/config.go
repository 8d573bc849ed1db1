package config

import (
	"time"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/carbonmock/carbon/pkg/requestlog"
	"github.com/carbonmock/carbon/pkg/store/file"
)

// Default values.
const (
	DefaultPort     = 3000
	DefaultDataDir  = "data"
	DefaultLogFile  = "log.txt"
	DefaultLogLevel = "info"
	DefaultLogFmt   = "text"
)

// Config is the complete server configuration.
type Config struct {
	// Port is the mock listener port.
	Port int `yaml:"port"`

	// DataDir is the root of the on-disk configuration store.
	DataDir string `yaml:"dataDir"`

	// Workspace is the workspace served at startup.
	Workspace string `yaml:"workspace"`

	// LogFile receives one JSON line per transaction. Empty disables it.
	LogFile string `yaml:"logFile"`

	Log        LogConfig        `yaml:"log"`
	Scripting  ScriptingConfig  `yaml:"scripting"`
	RequestLog RequestLogConfig `yaml:"requestLog"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Watch      WatchConfig      `yaml:"watch"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File additionally receives operational logs as JSON lines.
	File string `yaml:"file,omitempty"`
}

// ScriptingConfig selects the script engine used for matchers, script
// providers and proxy builders.
type ScriptingConfig struct {
	Engine string `yaml:"engine"`
}

// RequestLogConfig sizes the in-memory request log.
type RequestLogConfig struct {
	Capacity int `yaml:"capacity"`
}

// ProxyConfig configures forwarding to downstreams.
type ProxyConfig struct {
	// Timeout bounds a downstream round trip. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// WatchConfig controls reloading on data directory changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:      DefaultPort,
		DataDir:   DefaultDataDir,
		Workspace: mock.DefaultWorkspaceName,
		LogFile:   DefaultLogFile,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFmt,
		},
		Scripting: ScriptingConfig{
			Engine: script.EngineLua,
		},
		RequestLog: RequestLogConfig{
			Capacity: requestlog.DefaultCapacity,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: file.DefaultDebounce,
		},
	}
}
