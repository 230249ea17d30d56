// File: config/loader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrNoServers         = errors.New("no server configured")
)

// Loader reads, defaults and validates configuration files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader; a nil logger is replaced with a no-op one.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadFromFile decodes path by extension (.toml, .yaml, .yml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = ParseTOML(data)
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	SetDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	l.logger.Info("configuration loaded",
		zap.String("path", path),
		zap.Int("servers", len(cfg.Servers)))
	return cfg, nil
}

// ParseTOML decodes a TOML document.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}
	return &cfg, nil
}

// ParseYAML decodes a YAML document.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields.
func SetDefaults(cfg *Config) {
	if cfg.Timeouts.Client.Duration == 0 {
		cfg.Timeouts.Client.Duration = DefaultClientTimeout
	}
	if cfg.Timeouts.Cgi.Duration == 0 {
		cfg.Timeouts.Cgi.Duration = DefaultCgiTimeout
	}
	if cfg.Timeouts.SweepInterval.Duration == 0 {
		cfg.Timeouts.SweepInterval.Duration = DefaultSweepInterval
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		switch s.Host {
		case "":
			s.Host = "0.0.0.0"
		case "localhost":
			s.Host = "127.0.0.1"
		}
		if s.ClientMaxBodySize == 0 {
			s.ClientMaxBodySize = DefaultClientMaxBodySize
		}
		for j := range s.Locations {
			loc := &s.Locations[j]
			if loc.Index == "" {
				loc.Index = "index.html"
			}
			if len(loc.AllowedMethods) == 0 {
				loc.AllowedMethods = []string{"GET"}
			}
		}
	}
}

// Validate checks structural constraints.
func Validate(cfg *Config) error {
	if len(cfg.Servers) == 0 {
		return ErrNoServers
	}
	var errs []error
	for i, s := range cfg.Servers {
		if s.Port == 0 {
			errs = append(errs, fmt.Errorf("server[%d]: port is required", i))
		}
		if s.ClientMaxBodySize < 0 {
			errs = append(errs, fmt.Errorf("server[%d]: client_max_body_size must not be negative", i))
		}
		for code := range s.ErrorPages {
			if n, err := strconv.Atoi(code); err != nil || n < 300 || n > 599 {
				errs = append(errs, fmt.Errorf("server[%d]: invalid error_page status %q", i, code))
			}
		}
		for j, loc := range s.Locations {
			if !strings.HasPrefix(loc.Path, "/") {
				errs = append(errs, fmt.Errorf("server[%d].location[%d]: path must start with '/'", i, j))
			}
			if (loc.Root == "") == (loc.Redirect == "") {
				errs = append(errs, fmt.Errorf("server[%d].location[%d]: exactly one of root or redirect is required", i, j))
			}
			for _, m := range loc.AllowedMethods {
				switch m {
				case "GET", "POST", "DELETE":
				default:
					errs = append(errs, fmt.Errorf("server[%d].location[%d]: unsupported method %q", i, j, m))
				}
			}
			for _, ext := range loc.CgiExtensions {
				if !strings.HasPrefix(ext, ".") {
					errs = append(errs, fmt.Errorf("server[%d].location[%d]: cgi extension %q must start with '.'", i, j, ext))
				}
			}
		}
	}
	return errors.Join(errs...)
}
