package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/midbel/angle/cache"
)

const (
	defaultListen  = ":8080"
	defaultTimeout = 10 * time.Second
	defaultMaxBody = 10 << 20
)

type RedisConfig struct {
	Addr   string        `yaml:"addr"`
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type Config struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBody      int64         `yaml:"max_body"`

	Trace    bool              `yaml:"trace"`
	Mode     string            `yaml:"mode"`
	MaxDepth int               `yaml:"max_depth"`
	Params   map[string]string `yaml:"params"`

	// Stylesheets maps the name under which a stylesheet is served to its
	// file. Relative files are resolved against the directory of the
	// configuration file.
	Stylesheets map[string]string `yaml:"stylesheets"`

	Redis RedisConfig `yaml:"redis"`
}

func loadConfig(file string) (Config, error) {
	var cfg Config
	buf, err := os.ReadFile(file)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", file, err)
	}
	cfg.setDefaults()

	dir := filepath.Dir(file)
	for name, sheet := range cfg.Stylesheets {
		if !filepath.IsAbs(sheet) {
			cfg.Stylesheets[name] = filepath.Join(dir, sheet)
		}
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultTimeout
	}
	if c.MaxBody <= 0 {
		c.MaxBody = defaultMaxBody
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = cache.DefaultPrefix
	}
	if c.Params == nil {
		c.Params = make(map[string]string)
	}
	if c.Stylesheets == nil {
		c.Stylesheets = make(map[string]string)
	}
}
