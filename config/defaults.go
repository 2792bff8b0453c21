package config

import "time"

const DefaultSystemPrompt = "You are Fynex, a helpful AI trading assistant. You help users with market analysis, " +
	"trading concepts and their Kite Connect portfolio. You are concise, professional and knowledgeable about " +
	"financial markets. When you lack current information about a company, market or event, call the " +
	"search_financial_web tool. When the user asks about their own holdings or positions, call the " +
	"get_portfolio_summary tool."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "gemini-2.5-flash-lite"
	}
	if cfg.LLM.ExpansionModel == "" {
		cfg.LLM.ExpansionModel = "gemini-2.5-flash"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = DefaultSystemPrompt
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	if cfg.Search.ResultsPerQuery == 0 {
		cfg.Search.ResultsPerQuery = 5
	}
	if cfg.Search.MaxSearchedQueries == 0 {
		cfg.Search.MaxSearchedQueries = 2
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 15 * time.Second
	}
	if cfg.Search.RequestsPerSecond == 0 {
		cfg.Search.RequestsPerSecond = 5
	}
	if cfg.Search.Country == "" {
		cfg.Search.Country = "in"
	}
	if cfg.Search.Language == "" {
		cfg.Search.Language = "en"
	}

	if cfg.Kafka.JobsTopic == "" {
		cfg.Kafka.JobsTopic = "scraping_queue"
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = "scrape_events"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "scraper-workers"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "financial_docs"
	}
	if cfg.Qdrant.OnDimensionMismatch == "" {
		cfg.Qdrant.OnDimensionMismatch = "recreate"
	}

	if cfg.Scraper.Workers == 0 {
		cfg.Scraper.Workers = 2
	}
	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = max(cfg.Scraper.Workers, 1)
	}
	if cfg.Scraper.FetchTimeout == 0 {
		cfg.Scraper.FetchTimeout = 3 * time.Minute
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.Scraper.MaxBodyBytes == 0 {
		cfg.Scraper.MaxBodyBytes = 50 << 20
	}
	if cfg.Scraper.ChunkSize == 0 {
		cfg.Scraper.ChunkSize = 1000
	}
	if cfg.Scraper.ChunkOverlap == 0 {
		cfg.Scraper.ChunkOverlap = 200
	}
	if cfg.Scraper.Extraction == "" {
		cfg.Scraper.Extraction = "strip"
	}

	if cfg.RAG.PollInterval == 0 {
		cfg.RAG.PollInterval = time.Second
	}
	if cfg.RAG.PollMaxAttempts == 0 {
		cfg.RAG.PollMaxAttempts = 180
	}
	if cfg.RAG.SearchLimit == 0 {
		cfg.RAG.SearchLimit = 10
	}
	if cfg.RAG.PerQueryTopK == 0 {
		cfg.RAG.PerQueryTopK = 3
	}
	if cfg.RAG.MaxChunks == 0 {
		cfg.RAG.MaxChunks = 8
	}
	if cfg.RAG.MaxSnippets == 0 {
		cfg.RAG.MaxSnippets = 5
	}
	if cfg.RAG.EventTTL == 0 {
		cfg.RAG.EventTTL = 10 * time.Minute
	}

	if cfg.Broker.BaseURL == "" {
		cfg.Broker.BaseURL = "https://api.kite.trade"
	}
	if cfg.Broker.RequestsPerSecond == 0 {
		cfg.Broker.RequestsPerSecond = 3
	}
}
