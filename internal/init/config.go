package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode       string
	ServerAddr string
	TLSCert    string
	TLSKey     string

	// Session & admin
	SessionSecret string
	SeedToken     string

	// Timeline
	TimelineLimit int

	// Logging
	LogLevel  string
	SentryDSN string

	// Store
	StoreDriver string

	// Kafka (seed jobs); an empty broker disables async seeding
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost       string
	CassandraKeyspace   string
	CassandraUsername   string
	CassandraPassword   string
	CassandraTimeout    time.Duration
	CassandraDC         string
	CassandraMigrations string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Cloud Datastore (honours DATASTORE_EMULATOR_HOST)
	DatastoreProject string

	// Postgres / SQLite via gorm
	SQLDSN string
}

// Init loads the config using Viper and returns it
func Init() *Config {
	v := viper.New()

	v.SetDefault("MODE", "server")
	v.SetDefault("SERVER_ADDR", ":8080")

	v.SetDefault("SESSION_SECRET", "dev-key")
	v.SetDefault("TIMELINE_LIMIT", 20)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORE_DRIVER", "memory")

	v.SetDefault("KAFKA_TOPIC", "seed-jobs")
	v.SetDefault("KAFKA_GROUP_ID", "seed-worker")
	v.SetDefault("KAFKA_PARTITION", 0)
	v.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	v.SetDefault("CASSANDRA_HOST", "localhost")
	v.SetDefault("CASSANDRA_KEYSPACE", "tinyfeed")
	v.SetDefault("CASSANDRA_TIMEOUT", "10s")
	v.SetDefault("CASSANDRA_MIGRATIONS", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC can be empty

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "tinyfeed")

	v.SetDefault("DATASTORE_PROJECT_ID", "tinyfeed-dev")

	v.SetDefault("SQL_DSN", "tinyfeed.db")

	// Load env variables
	v.AutomaticEnv()

	// Optional config file support
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignore error if no file

	return &Config{
		Mode:                v.GetString("MODE"),
		ServerAddr:          v.GetString("SERVER_ADDR"),
		TLSCert:             v.GetString("TLS_CERT"),
		TLSKey:              v.GetString("TLS_KEY"),
		SessionSecret:       v.GetString("SESSION_SECRET"),
		SeedToken:           v.GetString("SEED_TOKEN"),
		TimelineLimit:       v.GetInt("TIMELINE_LIMIT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		SentryDSN:           v.GetString("SENTRY_DSN"),
		StoreDriver:         v.GetString("STORE_DRIVER"),
		KafkaBroker:         v.GetString("KAFKA_BROKER"),
		KafkaTopic:          v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:        v.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:      v.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:         parseDuration(v.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:        parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:       v.GetString("CASSANDRA_HOST"),
		CassandraKeyspace:   v.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername:   v.GetString("CASSANDRA_USERNAME"),
		CassandraPassword:   v.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:    parseDuration(v.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:         v.GetString("CASSANDRA_DC"),
		CassandraMigrations: v.GetString("CASSANDRA_MIGRATIONS"),
		MongoURI:            v.GetString("MONGO_URI"),
		MongoDatabase:       v.GetString("MONGO_DATABASE"),
		DatastoreProject:    v.GetString("DATASTORE_PROJECT_ID"),
		SQLDSN:              v.GetString("SQL_DSN"),
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// AsyncSeedEnabled reports whether seed jobs can be handed to the worker.
func (c *Config) AsyncSeedEnabled() bool {
	return c.KafkaBroker != ""
}
