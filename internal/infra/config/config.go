package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quorum-ai/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Panel     PanelConfig     `yaml:"panel"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	UploadDir       string        `yaml:"upload_dir"`
	RequestsPerMin  int           `yaml:"requests_per_min"`
	Burst           int           `yaml:"burst"`
	TrustedProxies  []string      `yaml:"trusted_proxies,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	// AlterProvider selects the provider class used by alters:
	// "local" or "remote".
	AlterProvider string `yaml:"alter_provider"`
	// Moderator names the provider used for final-decision synthesis.
	// It must refer to a remote-class provider.
	Moderator      string               `yaml:"moderator"`
	Providers      []ProviderConfig     `yaml:"providers"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "ollama" (local) or "openai" (remote)
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for remote providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RetrievalConfig holds document retrieval (RAG) settings.
type RetrievalConfig struct {
	Enabled      bool            `yaml:"enabled"`
	DataDir      string          `yaml:"data_dir"`
	ChunkSize    int             `yaml:"chunk_size"`
	ChunkOverlap int             `yaml:"chunk_overlap"`
	TopK         int             `yaml:"top_k"`
	Embedding    EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig holds text embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "ollama"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	CacheSize int    `yaml:"cache_size"`
}

// PanelConfig defines the discussion panel: teams and their alters.
type PanelConfig struct {
	Teams  map[string]TeamConfig    `yaml:"teams,omitempty"`
	Alters []domain.AlterDescriptor `yaml:"alters,omitempty"`
}

// TeamConfig defines a single team.
type TeamConfig struct {
	Description string `yaml:"description"`
	Alters      []int  `yaml:"alters"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			UploadDir:       "uploads",
			RequestsPerMin:  120,
			Burst:           20,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			AlterProvider: "local",
			Moderator:     "openai",
			Providers: []ProviderConfig{
				{
					Name:  "ollama",
					Type:  "ollama",
					Model: "llama3",
				},
				{
					Name:  "openai",
					Type:  "openai",
					Model: "gpt-5-nano",
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Retrieval: RetrievalConfig{
			Enabled:      true,
			DataDir:      "./data",
			ChunkSize:    512,
			ChunkOverlap: 50,
			TopK:         3,
			Embedding: EmbeddingConfig{
				Provider:  "ollama",
				Model:     "nomic-embed-text",
				CacheSize: 256,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file is not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: read config: %v", domain.ErrConfigLoad, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfigLoad, err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("QUORUM_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("%w: decrypt secrets: %v", domain.ErrConfigLoad, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies QUORUM_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUORUM_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUORUM_SERVER_UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("QUORUM_SERVER_REQUESTS_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.RequestsPerMin = n
		}
	}
	if v := os.Getenv("QUORUM_LLM_ALTER_PROVIDER"); v != "" {
		cfg.LLM.AlterProvider = v
	}
	if v := os.Getenv("QUORUM_LLM_MODERATOR"); v != "" {
		cfg.LLM.Moderator = v
	}
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		prefix := "QUORUM_LLM_" + strings.ToUpper(p.Name) + "_"
		if v := os.Getenv(prefix + "BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv(prefix + "API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(prefix + "MODEL"); v != "" {
			p.Model = v
		}
	}
	if v := os.Getenv("QUORUM_RETRIEVAL_ENABLED"); v != "" {
		cfg.Retrieval.Enabled = v == "true"
	}
	if v := os.Getenv("QUORUM_RETRIEVAL_DATA_DIR"); v != "" {
		cfg.Retrieval.DataDir = v
	}
	if v := os.Getenv("QUORUM_RETRIEVAL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("QUORUM_EMBEDDING_BASE_URL"); v != "" {
		cfg.Retrieval.Embedding.BaseURL = v
	}
	if v := os.Getenv("QUORUM_EMBEDDING_MODEL"); v != "" {
		cfg.Retrieval.Embedding.Model = v
	}
	if v := os.Getenv("QUORUM_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("QUORUM_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("QUORUM_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("QUORUM_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// Validate checks cross-field consistency not expressible in YAML alone.
func Validate(cfg *Config) error {
	names := make(map[string]bool, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("%w: provider with empty name", domain.ErrConfigLoad)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate provider %q", domain.ErrConfigLoad, p.Name)
		}
		names[p.Name] = true
		switch p.Type {
		case "ollama", "openai":
		default:
			return fmt.Errorf("%w: provider %q has unknown type %q", domain.ErrConfigLoad, p.Name, p.Type)
		}
	}

	if cfg.LLM.Moderator != "" && !names[cfg.LLM.Moderator] {
		return fmt.Errorf("%w: moderator provider %q not defined", domain.ErrConfigLoad, cfg.LLM.Moderator)
	}
	switch cfg.LLM.AlterProvider {
	case "", "local", "remote":
	default:
		return fmt.Errorf("%w: alter_provider must be \"local\" or \"remote\", got %q", domain.ErrConfigLoad, cfg.LLM.AlterProvider)
	}

	seen := make(map[int]bool, len(cfg.Panel.Alters))
	for _, a := range cfg.Panel.Alters {
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate alter id %d", domain.ErrConfigLoad, a.ID)
		}
		seen[a.ID] = true
		if a.Priority != "" && !a.Priority.Valid() {
			return fmt.Errorf("%w: alter %d has invalid priority %q", domain.ErrConfigLoad, a.ID, a.Priority)
		}
	}

	if cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be smaller than chunk_size", domain.ErrConfigLoad)
	}
	return nil
}

// TeamRegistry converts the panel's team section to a domain.TeamRegistry.
func (p PanelConfig) TeamRegistry() domain.TeamRegistry {
	if len(p.Teams) == 0 {
		return nil
	}
	reg := make(domain.TeamRegistry, len(p.Teams))
	for name, t := range p.Teams {
		reg[name] = domain.Team{Description: t.Description, Alters: t.Alters}
	}
	return reg
}
