// File: internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	ServerPort   string
	JWTSecretKey string
	LogLevel     string

	// Persistence
	DBDriver string
	DBDSN    string

	// Case data. CasesPath holds the case records, optionally with
	// precomputed embeddings written by casectl.
	CasesPath         string
	IndexBackend      string
	IndexBuildWorkers int

	// AI providers
	EmbeddingProvider string
	EmbeddingKey      string
	EmbeddingBaseURL  string
	EmbeddingModel    string
	LLMProvider       string
	LLMKey            string
	LLMBaseURL        string
	LLMModel          string
	LLMMaxTokens      int
	LLMTemperature    float64
	AITimeout         time.Duration

	// Pinecone, used when IndexBackend is "pinecone"
	PineconeAPIKey    string
	PineconeIndexHost string
	PineconeNamespace string

	// Redis likelihood cache, disabled when RedisAddr is empty
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LikelihoodCacheTTL time.Duration

	// Prompt and vocabulary files
	PromptsPath           string
	SymptomVocabularyPath string

	// Sessions
	SimulatedTurns        int
	SessionIdleTTL        time.Duration
	JanitorSchedule       string
	LiveDebounceWindow    time.Duration
	LiveRecommendEvery    time.Duration
	LiveMaxUnasked        int
	LikelihoodTopK        int
	RecommenderCandidates int
}

// Load reads configuration from environment variables or .env file.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		Environment:  env,
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "interview.db"),

		CasesPath:         getEnv("CASES_PATH", "data/cases.json"),
		IndexBackend:      strings.ToLower(getEnv("INDEX_BACKEND", "memory")),
		IndexBuildWorkers: getEnvAsInt("INDEX_BUILD_WORKERS", 4),

		EmbeddingProvider: getEnv("AI_EMBEDDING_PROVIDER", "openai"),
		EmbeddingKey:      getEnv("AI_EMBEDDING_KEY", ""),
		EmbeddingBaseURL:  getEnv("AI_EMBEDDING_BASE_URL", ""),
		EmbeddingModel:    getEnv("AI_EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMProvider:       getEnv("AI_LLM_PROVIDER", "openai"),
		LLMKey:            getEnv("AI_LLM_KEY", ""),
		LLMBaseURL:        getEnv("AI_LLM_BASE_URL", ""),
		LLMModel:          getEnv("AI_LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:      getEnvAsInt("AI_LLM_MAX_TOKENS", 1024),
		LLMTemperature:    getEnvAsFloat("AI_LLM_TEMPERATURE", 0.3),
		AITimeout:         getEnvAsDuration("AI_TIMEOUT", 60*time.Second),

		PineconeAPIKey:    getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost: getEnv("PINECONE_INDEX_HOST", ""),
		PineconeNamespace: getEnv("PINECONE_NAMESPACE", "cases"),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		LikelihoodCacheTTL: getEnvAsDuration("LIKELIHOOD_CACHE_TTL", 24*time.Hour),

		PromptsPath:           getEnv("PROMPTS_PATH", ""),
		SymptomVocabularyPath: getEnv("SYMPTOM_VOCABULARY_PATH", ""),

		SimulatedTurns:        getEnvAsInt("SIMULATED_TURNS", 6),
		SessionIdleTTL:        getEnvAsDuration("SESSION_IDLE_TTL", 2*time.Hour),
		JanitorSchedule:       getEnv("SESSION_JANITOR_SCHEDULE", "@every 5m"),
		LiveDebounceWindow:    getEnvAsDuration("LIVE_DEBOUNCE_WINDOW", 2*time.Second),
		LiveRecommendEvery:    getEnvAsDuration("LIVE_MIN_RECOMMEND_INTERVAL", 7*time.Second),
		LiveMaxUnasked:        getEnvAsInt("LIVE_MAX_UNASKED", 10),
		LikelihoodTopK:        getEnvAsInt("LIKELIHOOD_TOPK", 10),
		RecommenderCandidates: getEnvAsInt("RECOMMENDER_CANDIDATE_CASES", 5),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func (c *Config) validate() error {
	switch c.IndexBackend {
	case "memory", "pinecone":
	default:
		return fmt.Errorf("INDEX_BACKEND must be memory or pinecone, got %q", c.IndexBackend)
	}

	// Validation for production environments
	if !c.IsProduction() {
		return nil
	}
	missing := []string{}
	if c.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if c.EmbeddingKey == "" {
		missing = append(missing, "AI_EMBEDDING_KEY")
	}
	if c.LLMKey == "" {
		missing = append(missing, "AI_LLM_KEY")
	}
	if c.IndexBackend == "pinecone" {
		if c.PineconeAPIKey == "" {
			missing = append(missing, "PINECONE_API_KEY")
		}
		if c.PineconeIndexHost == "" {
			missing = append(missing, "PINECONE_INDEX_HOST")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required production environment variables: %v", missing)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as float. Using default value.", key)
		return defaultValue
	}
	return f
}

// getEnvAsDuration accepts Go duration strings such as "90s" or "2h".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as duration. Using default value.", key)
		return defaultValue
	}
	return d
}
