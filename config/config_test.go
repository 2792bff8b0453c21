package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("KAFKA_BROKERS", "localhost:9092, other:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092", "other:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 1000, cfg.Scraper.ChunkSize)
	assert.Equal(t, 200, cfg.Scraper.ChunkOverlap)
	assert.Equal(t, 3*time.Minute, cfg.Scraper.FetchTimeout)
	assert.Equal(t, time.Second, cfg.RAG.PollInterval)
	assert.Equal(t, 180, cfg.RAG.PollMaxAttempts)
	assert.Equal(t, 3, cfg.RAG.PerQueryTopK)
	assert.Equal(t, 8, cfg.RAG.MaxChunks)
	assert.Equal(t, 5, cfg.RAG.MaxSnippets)
	assert.Equal(t, 2, cfg.Search.MaxSearchedQueries)
	assert.Equal(t, "scraping_queue", cfg.Kafka.JobsTopic)
	assert.Equal(t, "financial_docs", cfg.Qdrant.Collection)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "recreate", cfg.Qdrant.OnDimensionMismatch)
	assert.Equal(t, 2, cfg.Scraper.Workers)
	assert.Equal(t, cfg.Scraper.Workers, cfg.Kafka.Partitions)
	assert.Equal(t, "in", cfg.Search.Country)
	assert.Equal(t, "en", cfg.Search.Language)
}

func TestApplyDefaults_PartitionsFollowWorkers(t *testing.T) {
	cfg := &Config{Scraper: ScraperConfig{Workers: 6}}
	ApplyDefaults(cfg)
	assert.Equal(t, 6, cfg.Kafka.Partitions)

	cfg = &Config{Scraper: ScraperConfig{Workers: 6}, Kafka: KafkaConfig{Partitions: 12}}
	ApplyDefaults(cfg)
	assert.Equal(t, 12, cfg.Kafka.Partitions)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
llm:
  api_key: from-file
kafka:
  brokers: ["k1:9092"]
scraper:
  chunk_size: 500
  chunk_overlap: 50
  fetch_timeout: 90s
rag:
  poll_interval: 250ms
`)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("APP_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Scraper.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Scraper.FetchTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.RAG.PollInterval)
}

func TestLoad_MissingAPIKeyFailsFast(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")

	_, err := Load("")
	require.ErrorIs(t, err, ErrMissingSetting)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{LLM: LLMConfig{APIKey: "k"}, Kafka: KafkaConfig{Brokers: []string{"b:9092"}}}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"overlap too large", func(c *Config) { c.Scraper.ChunkOverlap = c.Scraper.ChunkSize }, false},
		{"unknown extraction", func(c *Config) { c.Scraper.Extraction = "ocr" }, false},
		{"tei without url", func(c *Config) { c.Embedding.Provider = "tei" }, false},
		{"tei with url", func(c *Config) { c.Embedding.Provider = "tei"; c.Embedding.TEIURL = "http://tei" }, true},
		{"unknown mismatch policy", func(c *Config) { c.Qdrant.OnDimensionMismatch = "merge" }, false},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }, false},
		{"negative workers", func(c *Config) { c.Scraper.Workers = -1 }, false},
		{"zero workers", func(c *Config) { c.Scraper.Workers = 0 }, false},
		{"zero partitions", func(c *Config) { c.Kafka.Partitions = 0 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
