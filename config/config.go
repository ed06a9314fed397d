package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration, loaded from environment
// variables (optionally seeded from a .env file).
type Config struct {
	// Generation service
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMProvider    string // openai | claude
	LLMTemperature float64
	LLMMaxTokens   int64

	// Embeddings
	EmbeddingAPIKey    string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingDimension int

	// Knowledge base
	CorpusDir     string
	RetrievalTopK int

	// Corpus vector store
	CorpusBackend string // memory | postgres
	PGHost        string
	PGPort        int
	PGUser        string
	PGPassword    string
	PGDatabase    string
	PGSSLMode     string

	// Web search
	TavilyAPIKey  string
	WebMaxResults int

	// Per-call deadlines for external capabilities
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration

	// Route used when the classifier reply is ambiguous. The bias toward
	// the knowledge base over chat is a deliberate policy, not an accident.
	DefaultRoute string

	// Token budget for session history trimming
	MaxHistoryTokens int

	// HTTP server
	ListenAddr string

	// Session storage
	SessionBackend string // memory | redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Detection collaborator
	VisionEndpoint string

	// Report archive (optional)
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LLMAPIKey:          os.Getenv("NEUROLEAF_LLM_API_KEY"),
		LLMBaseURL:         os.Getenv("NEUROLEAF_LLM_BASE_URL"),
		LLMModel:           envOr("NEUROLEAF_LLM_MODEL", "gpt-4o-mini"),
		LLMProvider:        envOr("NEUROLEAF_LLM_PROVIDER", "openai"),
		LLMTemperature:     envFloat("NEUROLEAF_LLM_TEMPERATURE", 0),
		LLMMaxTokens:       int64(envInt("NEUROLEAF_LLM_MAX_TOKENS", 1000)),
		EmbeddingAPIKey:    envOr("NEUROLEAF_EMBEDDING_API_KEY", os.Getenv("NEUROLEAF_LLM_API_KEY")),
		EmbeddingBaseURL:   os.Getenv("NEUROLEAF_EMBEDDING_BASE_URL"),
		EmbeddingModel:     envOr("NEUROLEAF_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: envInt("NEUROLEAF_EMBEDDING_DIMENSION", 1536),
		CorpusDir:          envOr("NEUROLEAF_CORPUS_DIR", "corpus"),
		RetrievalTopK:      envInt("NEUROLEAF_RETRIEVAL_TOP_K", 5),
		CorpusBackend:      envOr("NEUROLEAF_CORPUS_BACKEND", "memory"),
		PGHost:             envOr("NEUROLEAF_PG_HOST", "127.0.0.1"),
		PGPort:             envInt("NEUROLEAF_PG_PORT", 5432),
		PGUser:             envOr("NEUROLEAF_PG_USER", "postgres"),
		PGPassword:         envOr("NEUROLEAF_PG_PASSWORD", "postgres"),
		PGDatabase:         envOr("NEUROLEAF_PG_DATABASE", "neuroleaf"),
		PGSSLMode:          envOr("NEUROLEAF_PG_SSLMODE", "disable"),
		TavilyAPIKey:       os.Getenv("NEUROLEAF_TAVILY_API_KEY"),
		WebMaxResults:      envInt("NEUROLEAF_WEB_MAX_RESULTS", 3),
		SearchTimeout:      envDuration("NEUROLEAF_SEARCH_TIMEOUT", 15*time.Second),
		GenerateTimeout:    envDuration("NEUROLEAF_GENERATE_TIMEOUT", 60*time.Second),
		DefaultRoute:       envOr("NEUROLEAF_DEFAULT_ROUTE", "rag"),
		MaxHistoryTokens:   envInt("NEUROLEAF_MAX_HISTORY_TOKENS", 4000),
		ListenAddr:         envOr("NEUROLEAF_LISTEN_ADDR", ":8000"),
		SessionBackend:     envOr("NEUROLEAF_SESSION_BACKEND", "memory"),
		RedisAddr:          envOr("NEUROLEAF_REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("NEUROLEAF_REDIS_PASSWORD"),
		RedisDB:            envInt("NEUROLEAF_REDIS_DB", 0),
		VisionEndpoint:     os.Getenv("NEUROLEAF_VISION_ENDPOINT"),
		MongoURI:           os.Getenv("NEUROLEAF_MONGO_URI"),
		MongoDatabase:      envOr("NEUROLEAF_MONGO_DATABASE", "neuroleaf"),
		MongoCollection:    envOr("NEUROLEAF_MONGO_COLLECTION", "detection_reports"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration. A missing generation-service API
// key is fatal; everything else degrades per-turn instead.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("NEUROLEAF_LLM_API_KEY", c.LLMAPIKey)
	v.RequireNonEmpty("NEUROLEAF_LLM_MODEL", c.LLMModel)
	v.ValidateOneOf("NEUROLEAF_LLM_PROVIDER", c.LLMProvider, "openai", "claude")
	v.ValidateOneOf("NEUROLEAF_DEFAULT_ROUTE", c.DefaultRoute, "chat", "rag", "web")
	v.ValidateOneOf("NEUROLEAF_SESSION_BACKEND", c.SessionBackend, "memory", "redis")
	v.ValidateOneOf("NEUROLEAF_CORPUS_BACKEND", c.CorpusBackend, "memory", "postgres")
	v.ValidatePort("NEUROLEAF_PG_PORT", c.PGPort)
	v.RequirePositive("NEUROLEAF_RETRIEVAL_TOP_K", c.RetrievalTopK)
	v.RequirePositive("NEUROLEAF_WEB_MAX_RESULTS", c.WebMaxResults)
	v.ValidateFloatRange("NEUROLEAF_LLM_TEMPERATURE", c.LLMTemperature, 0.0, 2.0)

	return v.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
