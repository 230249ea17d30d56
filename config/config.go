// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration model: virtual servers, locations, timeouts, logging
// and metrics endpoints.

package config

import (
	"fmt"
	"time"
)

// DefaultClientMaxBodySize is 1 MiB.
const DefaultClientMaxBodySize int64 = 1 << 20

// Defaults for the timeout sweep.
const (
	DefaultClientTimeout = 60 * time.Second
	DefaultCgiTimeout    = 30 * time.Second
	DefaultSweepInterval = time.Second
)

// Config is the root of a configuration file.
type Config struct {
	Log      LoggerConfig    `toml:"log" yaml:"log"`
	Timeouts TimeoutConfig   `toml:"timeouts" yaml:"timeouts"`
	Metrics  MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Servers  []ServerContext `toml:"server" yaml:"server"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"` // json or console
	Output     string `toml:"output" yaml:"output"` // stdout or file
	FilePath   string `toml:"file_path" yaml:"file_path"`
	MaxSize    int    `toml:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAge     int    `toml:"max_age" yaml:"max_age"` // days
	Compress   bool   `toml:"compress" yaml:"compress"`
	Stacktrace bool   `toml:"stacktrace" yaml:"stacktrace"`
	Color      bool   `toml:"color" yaml:"color"`
}

// TimeoutConfig bounds idle clients and running CGI children.
type TimeoutConfig struct {
	Client        Duration `toml:"client" yaml:"client"`
	Cgi           Duration `toml:"cgi" yaml:"cgi"`
	SweepInterval Duration `toml:"sweep_interval" yaml:"sweep_interval"`
}

// MetricsConfig enables the Prometheus and debug endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// ServerContext is one virtual server.
type ServerContext struct {
	Host              string            `toml:"host" yaml:"host"`
	Port              uint16            `toml:"port" yaml:"port"`
	ServerNames       []string          `toml:"server_name" yaml:"server_name"`
	ClientMaxBodySize int64             `toml:"client_max_body_size" yaml:"client_max_body_size"`
	ErrorPages        map[string]string `toml:"error_page" yaml:"error_page"`
	Locations         []LocationContext `toml:"location" yaml:"location"`
}

// Address renders host:port for logs.
func (s ServerContext) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HasServerName reports whether name is one of the configured names.
func (s ServerContext) HasServerName(name string) bool {
	for _, n := range s.ServerNames {
		if n == name {
			return true
		}
	}
	return false
}

// LocationContext routes a path prefix.
type LocationContext struct {
	Path           string   `toml:"path" yaml:"path"`
	Root           string   `toml:"root" yaml:"root"`
	Index          string   `toml:"index" yaml:"index"`
	Autoindex      bool     `toml:"autoindex" yaml:"autoindex"`
	CgiExtensions  []string `toml:"cgi_extensions" yaml:"cgi_extensions"`
	Redirect       string   `toml:"redirect" yaml:"redirect"`
	AllowedMethods []string `toml:"allowed_methods" yaml:"allowed_methods"`
}

// Allows reports whether method is permitted at this location.
func (l LocationContext) Allows(method string) bool {
	for _, m := range l.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Duration decodes "1m30s" style strings from TOML and YAML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
