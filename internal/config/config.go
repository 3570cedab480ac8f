// Package config loads web2 settings from YAML or CUE files and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// WEB2_* environment variables, command-line flags (applied by the cli
// package).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file settings.
const (
	EnvAddr    = "WEB2_ADDR"
	EnvDSN     = "WEB2_DSN"
	EnvBaseURL = "WEB2_BASE_URL"
)

// Config is the full configuration.
type Config struct {
	Server Server
	Client Client
}

// Server configures the resource server.
type Server struct {
	Addr   string
	Driver string // "sqlite3" or "pgx"
	DSN    string
	Seed   string // optional seed file applied at startup
}

// Client configures the framework client commands.
type Client struct {
	BaseURL  string
	Resource string
	Timeout  time.Duration
}

// ResourceURL returns the root URL of the configured resource.
func (c Client) ResourceURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.Resource, "/")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Addr: ":3000", Driver: "sqlite3", DSN: "web2.db"},
		Client: Client{BaseURL: "http://localhost:3000", Resource: "users", Timeout: 10 * time.Second},
	}
}

// fileConfig is the on-disk shape shared by YAML and CUE.
type fileConfig struct {
	Server struct {
		Addr   string `yaml:"addr" json:"addr"`
		Driver string `yaml:"driver" json:"driver"`
		DSN    string `yaml:"dsn" json:"dsn"`
		Seed   string `yaml:"seed" json:"seed"`
	} `yaml:"server" json:"server"`
	Client struct {
		BaseURL  string `yaml:"base_url" json:"base_url"`
		Resource string `yaml:"resource" json:"resource"`
		Timeout  string `yaml:"timeout" json:"timeout"`
	} `yaml:"client" json:"client"`
}

// Load reads path (".yaml", ".yml", ".json" or ".cue"), applies environment
// overrides and validates the result. An empty path loads defaults plus
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml", ".json":
			cfg, err = parseYAML(data)
		case ".cue":
			cfg, err = parseCUE(path, data)
		default:
			err = fmt.Errorf("unsupported config format %q", ext)
		}
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func parseYAML(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fc.merge(Default())
}

func parseCUE(path string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return Config{}, fmt.Errorf("compile cue: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate cue: %w", err)
	}
	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("decode cue: %w", err)
	}
	return fc.merge(Default())
}

// merge overlays the set fields of fc on base.
func (fc fileConfig) merge(base Config) (Config, error) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Server.Addr, fc.Server.Addr)
	set(&base.Server.Driver, fc.Server.Driver)
	set(&base.Server.DSN, fc.Server.DSN)
	set(&base.Server.Seed, fc.Server.Seed)
	set(&base.Client.BaseURL, fc.Client.BaseURL)
	set(&base.Client.Resource, fc.Client.Resource)
	if fc.Client.Timeout != "" {
		d, err := time.ParseDuration(fc.Client.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("client.timeout: %w", err)
		}
		base.Client.Timeout = d
	}
	return base, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		cfg.Server.DSN = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.Client.BaseURL = v
	}
}

// Validate checks the settings that every loader must agree on.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.Driver != "sqlite3" && c.Server.Driver != "pgx" {
		errs = append(errs, fmt.Errorf("server.driver %q: want sqlite3 or pgx", c.Server.Driver))
	}
	if u, err := url.Parse(c.Client.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.base_url %q: want an http(s) URL", c.Client.BaseURL))
	}
	if strings.Trim(c.Client.Resource, "/") == "" {
		errs = append(errs, errors.New("client.resource is required"))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("client.timeout %s: must be positive", c.Client.Timeout))
	}
	return errors.Join(errs...)
}
