package main

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/soumitsalman/eventsack/sdk"
	"gopkg.in/yaml.v3"
)

const (
	MONGO    = "mongo"
	POSTGRES = "postgres"
	MEMORY   = "memory"
)

type ServerConfig struct {
	Port      string  `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type StoreConfig struct {
	Driver           string         `yaml:"driver"`
	ConnectionString string         `yaml:"connection_string"`
	Database         string         `yaml:"database"`
	MaxConns         int32          `yaml:"max_conns"`
	DedupeBriefs     bool           `yaml:"dedupe_briefs"`
	Lease            *time.Duration `yaml:"lease"`
	ClaimLimit       int            `yaml:"claim_limit"`
}

type LLMConfig struct {
	BaseURL              string        `yaml:"base_url"`
	Model                string        `yaml:"model"`
	APIKey               string        `yaml:"api_key"`
	Timeout              time.Duration `yaml:"timeout"`
	Retries              uint          `yaml:"retries"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	MaxPromptTokens      int           `yaml:"max_prompt_tokens"`
	MaxDescriptionTokens int           `yaml:"max_description_tokens"`
}

type ClassifierConfig struct {
	FailurePolicy string   `yaml:"failure_policy"`
	Trade         string   `yaml:"trade"`
	Competitors   []string `yaml:"competitors"`
	BatchSize     int      `yaml:"batch_size"`
}

type FanoutConfig struct {
	Workers    int           `yaml:"workers"`
	WriteDelay time.Duration `yaml:"write_delay"`
}

type IngestConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

type ScanConfig struct {
	DefaultWindowDays int           `yaml:"default_window_days"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Store      StoreConfig       `yaml:"store"`
	LLM        LLMConfig         `yaml:"llm"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Fanout     FanoutConfig      `yaml:"fanout"`
	Ingest     IngestConfig      `yaml:"ingest"`
	Scan       ScanConfig        `yaml:"scan"`
	Sources    map[string]string `yaml:"sources"`
}

// ConfigLoader reads the yaml config and, when watched, reloads it on change.
type ConfigLoader struct {
	path      string
	mu        sync.RWMutex
	current   *Config
	on_change []func(*Config)
}

// NewConfigLoader does the initial load. An empty path means defaults plus environment.
func NewConfigLoader(path string) (*ConfigLoader, error) {
	l := &ConfigLoader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

func (l *ConfigLoader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *ConfigLoader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on_change = append(l.on_change, fn)
}

// Watch hot reloads the file in the background until stop is called.
func (l *ConfigLoader) Watch() (stop func(), err error) {
	if l.path == "" {
		return func() {}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "config watcher")
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, eris.Wrapf(err, "watching %s", l.path)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						log.Println("[config] reload failed, keeping the old config.", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Println("[config] watcher error.", err)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }, nil
}

func (l *ConfigLoader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.on_change))
	copy(callbacks, l.on_change)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	log.Printf("[config] reloaded %s\n", l.path)
	return cfg, nil
}

func (l *ConfigLoader) load() (*Config, error) {
	var cfg Config
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, eris.Wrapf(err, "reading config %s", l.path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, eris.Wrapf(err, "parsing config %s", l.path)
		}
	}
	applyEnvironment(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, eris.Wrapf(err, "config %s", l.path)
	}
	return &cfg, nil
}

// validate rejects values that would otherwise silently fall back to a default.
func validate(cfg *Config) error {
	switch sdk.FailurePolicy(cfg.Classifier.FailurePolicy) {
	case sdk.FailOpen, sdk.FailClosed:
	default:
		return eris.Errorf("unknown classifier.failure_policy %q, want %q or %q", cfg.Classifier.FailurePolicy, sdk.FailOpen, sdk.FailClosed)
	}
	return nil
}

// secrets and deployment specifics come from the environment and win over the file
func applyEnvironment(cfg *Config) {
	setFromEnv(&cfg.Store.ConnectionString, "DB_CONNECTION_STRING")
	setFromEnv(&cfg.LLM.APIKey, "LLMSERVICE_API_KEY")
	setFromEnv(&cfg.LLM.BaseURL, "LLMSERVICE_BASE_URL")
	setFromEnv(&cfg.LLM.Model, "LLMSERVICE_MODEL")
	setFromEnv(&cfg.Server.Port, "PORT")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 100
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 2000
	}
	if cfg.Store.Driver == "" {
		if cfg.Store.ConnectionString == "" {
			cfg.Store.Driver = MEMORY
		} else {
			cfg.Store.Driver = MONGO
		}
	}
	if cfg.Store.Lease == nil {
		lease := 10 * time.Minute
		cfg.Store.Lease = &lease
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.Retries == 0 {
		cfg.LLM.Retries = 3
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = 2 * time.Second
	}
	cfg.Classifier.FailurePolicy = strings.ToLower(strings.TrimSpace(cfg.Classifier.FailurePolicy))
	if cfg.Classifier.FailurePolicy == "" {
		cfg.Classifier.FailurePolicy = string(sdk.FailOpen)
	}
	if cfg.Classifier.BatchSize == 0 {
		cfg.Classifier.BatchSize = 20
	}
	if cfg.Fanout.Workers == 0 {
		cfg.Fanout.Workers = 4
	}
	if cfg.Fanout.WriteDelay == 0 {
		cfg.Fanout.WriteDelay = 50 * time.Millisecond
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 25
	}
	if cfg.Ingest.BatchDelay == 0 {
		cfg.Ingest.BatchDelay = 100 * time.Millisecond
	}
	if cfg.Scan.DefaultWindowDays == 0 {
		cfg.Scan.DefaultWindowDays = 30
	}
	if cfg.Scan.FetchTimeout == 0 {
		cfg.Scan.FetchTimeout = 30 * time.Second
	}
}
