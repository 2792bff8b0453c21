package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingSetting is returned by Validate when a required value is absent.
var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	RAG       RAGConfig       `yaml:"rag"`
	Broker    BrokerConfig    `yaml:"broker"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LLMConfig struct {
	APIKey         string        `yaml:"api_key"`
	ChatModel      string        `yaml:"chat_model"`
	ExpansionModel string        `yaml:"expansion_model"`
	Temperature    float32       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	SystemPrompt   string        `yaml:"system_prompt"`
}

type EmbeddingConfig struct {
	// Provider is "gemini" or "tei".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	TEIURL     string        `yaml:"tei_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	SerpAPIKey         string        `yaml:"serpapi_key"`
	ResultsPerQuery    int           `yaml:"results_per_query"`
	MaxSearchedQueries int           `yaml:"max_searched_queries"`
	Timeout            time.Duration `yaml:"timeout"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	// Country and Language map to the gl and hl search parameters.
	Country  string `yaml:"country"`
	Language string `yaml:"language"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	JobsTopic     string   `yaml:"jobs_topic"`
	EventsTopic   string   `yaml:"events_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
	// Partitions of the jobs topic. A consumer group reader without a
	// partition stays idle, so it should be at least scraper.workers.
	Partitions int `yaml:"partitions"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	// OnDimensionMismatch is "recreate" or "version".
	OnDimensionMismatch string `yaml:"on_dimension_mismatch"`
}

type ScraperConfig struct {
	Workers      int           `yaml:"workers"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	UserAgent    string        `yaml:"user_agent"`
	ProxyURL     string        `yaml:"proxy_url"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	// Extraction is "strip", "readability" or "trafilatura".
	Extraction string `yaml:"extraction"`
	LedgerPath string `yaml:"ledger_path"`
}

type RAGConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	SearchLimit     int           `yaml:"search_limit"`
	PerQueryTopK    int           `yaml:"per_query_top_k"`
	MaxChunks       int           `yaml:"max_chunks"`
	MaxSnippets     int           `yaml:"max_snippets"`
	EventTTL        time.Duration `yaml:"event_ttl"`
}

type BrokerConfig struct {
	KiteAPIKey        string  `yaml:"kite_api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Load reads the YAML file at path (optional, "" skips it), applies environment
// overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SERPAPI_KEY"); v != "" {
		cfg.Search.SerpAPIKey = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QDRANT_PORT %q: %w", v, err)
		}
		cfg.Qdrant.Port = port
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Broker.KiteAPIKey = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid APP_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate reports configuration errors that must stop the process at startup.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.api_key (or GEMINI_API_KEY)", ErrMissingSetting)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers (or KAFKA_BROKERS)", ErrMissingSetting)
	}
	switch c.Embedding.Provider {
	case "gemini":
	case "tei":
		if c.Embedding.TEIURL == "" {
			return fmt.Errorf("%w: embedding.tei_url", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("scraper.workers must be at least 1, got %d", c.Scraper.Workers)
	}
	if c.Kafka.Partitions < 1 {
		return fmt.Errorf("kafka.partitions must be at least 1, got %d", c.Kafka.Partitions)
	}
	if c.Scraper.ChunkSize <= 0 {
		return fmt.Errorf("scraper.chunk_size must be positive, got %d", c.Scraper.ChunkSize)
	}
	if c.Scraper.ChunkOverlap < 0 || c.Scraper.ChunkOverlap >= c.Scraper.ChunkSize {
		return fmt.Errorf("scraper.chunk_overlap must be in [0, chunk_size), got %d", c.Scraper.ChunkOverlap)
	}
	switch c.Scraper.Extraction {
	case "strip", "readability", "trafilatura":
	default:
		return fmt.Errorf("unknown scraper.extraction %q", c.Scraper.Extraction)
	}
	switch c.Qdrant.OnDimensionMismatch {
	case "recreate", "version":
	default:
		return fmt.Errorf("unknown qdrant.on_dimension_mismatch %q", c.Qdrant.OnDimensionMismatch)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
