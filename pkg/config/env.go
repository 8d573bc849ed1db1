package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names
const (
	EnvPort               = "CARBON_PORT"
	EnvDataDir            = "CARBON_DATA_DIR"
	EnvWorkspace          = "CARBON_WORKSPACE"
	EnvLogFile            = "CARBON_LOG_FILE"
	EnvLogLevel           = "CARBON_LOG_LEVEL"
	EnvLogFormat          = "CARBON_LOG_FORMAT"
	EnvScriptEngine       = "CARBON_SCRIPT_ENGINE"
	EnvRequestLogCapacity = "CARBON_REQUEST_LOG_CAPACITY"
	EnvProxyTimeout       = "CARBON_PROXY_TIMEOUT"
	EnvWatch              = "CARBON_WATCH"
)

// LookupFunc reports the value of an environment variable. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the CARBON_* variables present in the
// environment. Malformed numbers, durations and booleans are reported
// together; the remaining variables are still applied.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPort, err))
		} else {
			cfg.Port = port
		}
	}
	str(EnvDataDir, &cfg.DataDir)
	str(EnvWorkspace, &cfg.Workspace)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)
	str(EnvScriptEngine, &cfg.Scripting.Engine)

	// An empty CARBON_LOG_FILE disables the file sink.
	if v, ok := lookup(EnvLogFile); ok {
		cfg.LogFile = v
	}

	if v, ok := lookup(EnvRequestLogCapacity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvRequestLogCapacity, err))
		} else {
			cfg.RequestLog.Capacity = n
		}
	}

	if v, ok := lookup(EnvProxyTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvProxyTimeout, err))
		} else {
			cfg.Proxy.Timeout = d
		}
	}

	if v, ok := lookup(EnvWatch); ok && v != "" {
		enabled, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvWatch, err))
		} else {
			cfg.Watch.Enabled = enabled
		}
	}

	return errors.Join(errs...)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}
