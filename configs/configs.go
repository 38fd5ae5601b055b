// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// MongoURI is the MongoDB connection string.
	MongoURI string

	// MongoDB is the database name holding the quote collections.
	MongoDB string

	// KafkaQuotes contains Kafka connection settings for the quote feed.
	KafkaQuotes KafkaConfig

	// Ingester contains settings for the Kafka-to-Mongo ingester.
	Ingester IngesterConfig

	// Aggregator contains settings for the hourly/daily aggregation runs.
	Aggregator AggregatorConfig

	// API contains settings for the HTTP server.
	API APIConfig

	// Auth contains credentials and token settings for the API.
	Auth AuthConfig
}

// KafkaConfig holds Kafka connection settings for the quote feed.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for quote snapshots.
	Topic string

	// GroupID is the consumer group ID for the ingester.
	GroupID string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of quotes to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// AggregatorConfig holds scheduling settings for the aggregation runs.
type AggregatorConfig struct {
	// Schedule is a cron expression for the periodic aggregation run.
	Schedule string

	// PoolSize caps concurrent store operations during a run.
	PoolSize int
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
}

// AuthConfig holds API credentials and token settings.
type AuthConfig struct {
	// Secret signs the issued tokens.
	Secret string

	// Username and Password are the single API account's credentials.
	Username string
	Password string

	// TokenTTLMinutes is the issued token lifetime in minutes.
	TokenTTLMinutes int
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "coinwatch"),
		KafkaQuotes: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "coinwatch_quotes"),
			GroupID: getEnv("KAFKA_QUOTE_GROUP_ID", "coinwatch-quote-consumer"),
		},
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Aggregator: AggregatorConfig{
			Schedule: getEnv("AGGREGATOR_SCHEDULE", "5 * * * *"),
			PoolSize: getEnvInt("AGGREGATOR_POOL_SIZE", 10),
		},
		API: APIConfig{
			Addr: getEnv("API_ADDR", ":8080"),
		},
		Auth: AuthConfig{
			Secret:          getEnv("AUTH_SECRET", "change-me"),
			Username:        getEnv("AUTH_USERNAME", "admin"),
			Password:        getEnv("AUTH_PASSWORD", ""),
			TokenTTLMinutes: getEnvInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
