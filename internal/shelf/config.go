package shelf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProxyConfig struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Fetch struct {
		Timeout  string        `yaml:"timeout"`
		MinBytes string        `yaml:"minBytes"`
		Proxies  []ProxyConfig `yaml:"proxies"`

		// compiled
		timeoutDur time.Duration
		minBytesN  int64
		proxies    []Proxy
	} `yaml:"fetch"`

	Library struct {
		Default   string     `yaml:"default"`
		WarmEvery string     `yaml:"warmEvery"`
		Documents []Document `yaml:"documents"`

		// compiled
		warmDur time.Duration
	} `yaml:"library"`

	Catalog struct {
		URL          string `yaml:"url"`
		RefreshEvery string `yaml:"refreshEvery"`
		InitialDelay string `yaml:"initialDelay"`

		// compiled
		refreshDur      time.Duration
		initialDelayDur time.Duration
	} `yaml:"catalog"`

	Logging struct {
		Level         string `yaml:"level"`
		LogStatsEvery string `yaml:"logStatsEvery"`

		// compiled
		logStatsEveryDur time.Duration
	} `yaml:"logging"`
}

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) compile() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data/shelf"
	}

	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = "30s"
	}
	d, err := time.ParseDuration(cfg.Fetch.Timeout)
	if err != nil {
		return fmt.Errorf("fetch.timeout: %w", err)
	}
	cfg.Fetch.timeoutDur = d

	if cfg.Fetch.MinBytes == "" {
		cfg.Fetch.MinBytes = "10kb"
	}
	n, err := parseBytes(cfg.Fetch.MinBytes)
	if err != nil {
		return fmt.Errorf("fetch.minBytes: %w", err)
	}
	cfg.Fetch.minBytesN = n

	cfg.Fetch.proxies = cfg.Fetch.proxies[:0]
	seen := map[string]struct{}{}
	for i, p := range cfg.Fetch.Proxies {
		name := strings.TrimSpace(p.Name)
		tmpl := strings.TrimSpace(p.Template)
		if name == "" || tmpl == "" {
			return fmt.Errorf("fetch.proxies[%d]: name and template are required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("fetch.proxies[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		cfg.Fetch.proxies = append(cfg.Fetch.proxies, Proxy{Name: name, Template: tmpl})
	}

	if cfg.Library.Default == "" {
		return fmt.Errorf("library.default is required")
	}
	if cfg.Library.WarmEvery != "" {
		d, err := time.ParseDuration(cfg.Library.WarmEvery)
		if err != nil {
			return fmt.Errorf("library.warmEvery: %w", err)
		}
		cfg.Library.warmDur = d
	}
	for i, doc := range cfg.Library.Documents {
		if doc.ID == "" || doc.URL == "" {
			return fmt.Errorf("library.documents[%d]: id and url are required", i)
		}
	}

	if cfg.Catalog.URL != "" {
		if cfg.Catalog.RefreshEvery != "" {
			d, err := time.ParseDuration(cfg.Catalog.RefreshEvery)
			if err != nil {
				return fmt.Errorf("catalog.refreshEvery: %w", err)
			}
			cfg.Catalog.refreshDur = d
		}
		if cfg.Catalog.InitialDelay != "" {
			d, err := time.ParseDuration(cfg.Catalog.InitialDelay)
			if err != nil {
				return fmt.Errorf("catalog.initialDelay: %w", err)
			}
			cfg.Catalog.initialDelayDur = d
		}
	}

	if cfg.Logging.LogStatsEvery != "" {
		d, err := time.ParseDuration(cfg.Logging.LogStatsEvery)
		if err != nil {
			return fmt.Errorf("logging.logStatsEvery: %w", err)
		}
		cfg.Logging.logStatsEveryDur = d
	}

	return nil
}
