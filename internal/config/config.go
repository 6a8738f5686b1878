package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Upload handling
	MaxFileSize    int64
	AllowedTypes   []string
	FileStorageDir string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// OCR sidecar service
	OCRServiceURL     string
	OCRServiceEnabled bool
	OCRTimeout        int // seconds

	// Scanned-PDF detection tunables. Empirical thresholds, kept
	// configurable rather than treated as hard contracts.
	ScannedMinWords      int
	ScannedMinAvgWordLen float64
	MinExtractedChars    int

	// Chunking and processing
	ProcessingConcurrency int

	// Vector index
	VectorDimensions    int
	VectorNamespaces    []string
	SimilarityThreshold float64
	UpsertBatchSize     int
	EncryptionKey       string // hex-encoded AES-256 key; empty disables encryption

	// Search cache
	SearchCacheTTLHours int
	SearchCacheMaxSize  int

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai", "hash"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbeddingRateLimit    float64 // requests per second against the provider
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/merchant_docs?sslmode=disable"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:   strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain,text/csv"), ","),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./uploads"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OCRServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled: getEnvBool("OCR_SERVICE_ENABLED", true),
		OCRTimeout:        getEnvInt("OCR_TIMEOUT", 300), // 5 minutes

		ScannedMinWords:      getEnvInt("SCANNED_MIN_WORDS", 50),
		ScannedMinAvgWordLen: getEnvFloat64("SCANNED_MIN_AVG_WORD_LEN", 2.0),
		MinExtractedChars:    getEnvInt("MIN_EXTRACTED_CHARS", 100),

		ProcessingConcurrency: getEnvInt("PROCESSING_CONCURRENCY", 3),

		VectorDimensions:    getEnvInt("VECTOR_DIM", 768),
		VectorNamespaces:    strings.Split(getEnv("VECTOR_NAMESPACES", "default"), ","),
		SimilarityThreshold: getEnvFloat64("SIMILARITY_THRESHOLD", 0.7),
		UpsertBatchSize:     getEnvInt("UPSERT_BATCH_SIZE", 100),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),

		SearchCacheTTLHours: getEnvInt("SEARCH_CACHE_TTL_HOURS", 24),
		SearchCacheMaxSize:  getEnvInt("SEARCH_CACHE_MAX_SIZE", 1000),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingRateLimit:    getEnvFloat64("EMBEDDING_RATE_LIMIT", 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
