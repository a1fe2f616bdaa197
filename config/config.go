// Package config reads the bookrule configuration file.
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	tomlenc "github.com/go-micro/plugins/v4/config/encoder/toml"
	"go-micro.dev/v4/config"
	"go-micro.dev/v4/config/reader"
	"go-micro.dev/v4/config/reader/json"
	"go-micro.dev/v4/config/source"
	"go-micro.dev/v4/config/source/file"
)

const DefaultPath = "config.toml"

type Config struct {
	LogLevel string  `json:"logLevel" toml:"logLevel"`
	LogFile  string  `json:"logFile" toml:"logFile"`
	Fetcher  Fetcher `json:"fetcher" toml:"fetcher"`
	Engine   Engine  `json:"engine" toml:"engine"`
	Script   Script  `json:"script" toml:"script"`
	Storage  Storage `json:"storage" toml:"storage"`
}

type Fetcher struct {
	// Timeout in milliseconds.
	Timeout   int      `json:"timeout" toml:"timeout"`
	Proxy     []string `json:"proxy" toml:"proxy"`
	UserAgent string   `json:"userAgent" toml:"userAgent"`
	// Bandwidth in bytes per second, 0 for unlimited.
	Bandwidth int64 `json:"bandwidth" toml:"bandwidth"`
}

type Engine struct {
	WorkCount int `json:"workCount" toml:"workCount"`
	MaxPages  int `json:"maxPages" toml:"maxPages"`
}

type Script struct {
	// CacheTTL in seconds.
	CacheTTL int `json:"cacheTTL" toml:"cacheTTL"`
}

type Storage struct {
	Path string `json:"path" toml:"path"`
}

func Default() Config {
	return Config{
		LogLevel: "INFO",
		Fetcher: Fetcher{
			Timeout: 15000,
			Proxy:   []string{},
		},
		Engine: Engine{
			WorkCount: 5,
			MaxPages:  50,
		},
		Script:  Script{CacheTTL: 1800},
		Storage: Storage{Path: "bookrule.db"},
	}
}

func (f Fetcher) TimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Millisecond
}

func (s Script) TTL() time.Duration {
	return time.Duration(s.CacheTTL) * time.Second
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}

	enc := tomlenc.NewEncoder()
	cfg, err := config.NewConfig(config.WithReader(json.NewReader(reader.WithEncoder(enc))))
	if err != nil {
		return c, err
	}
	if err := cfg.Load(file.NewSource(file.WithPath(path), source.WithEncoder(enc))); err != nil {
		return c, err
	}
	if err := cfg.Scan(&c); err != nil {
		return c, err
	}
	return c, nil
}

// Write encodes c as TOML.
func Write(w io.Writer, c Config) error {
	return toml.NewEncoder(w).Encode(c)
}

// WriteFile writes c to path unless the file exists.
func WriteFile(path string, c Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
