package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything main needs to wire the process. Values come
// from environment variables with development defaults so main stays lean.
type Config struct {
	Addr        string
	DatabaseURL string

	// DirectoryURL points at the access-control directory (primary source);
	// RegistryURL points at the secondary card registry. Either may be empty,
	// which disables the corresponding scheduled job.
	DirectoryURL string
	RegistryURL  string

	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	// ResponsibleMarker is the directory category whose holders are mirrored
	// into the responsible-party table.
	ResponsibleMarker string

	// Cron specs for the three scheduled jobs.
	ReconcileSpec string
	SecondarySpec string
	FinalizeSpec  string

	// EpochTTL bounds how long a primary-reconciled mark suppresses the
	// secondary sync's person correction.
	EpochTTL time.Duration
}

// DefaultResponsibleMarker is the directory category for nutrition staff,
// as emitted by the upstream access-control system.
const DefaultResponsibleMarker = "Учебно-воспитательный отдел"

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("MEALCARD_ADDR", ":8080"),
		DatabaseURL:       envOr("MEALCARD_DATABASE_URL", "postgres://localhost:5432/mealcard?sslmode=disable"),
		DirectoryURL:      os.Getenv("MEALCARD_DIRECTORY_URL"),
		RegistryURL:       os.Getenv("MEALCARD_REGISTRY_URL"),
		RedisURL:          os.Getenv("MEALCARD_REDIS_URL"),
		KafkaTopic:        envOr("MEALCARD_KAFKA_TOPIC", "mealcard.audit"),
		ResponsibleMarker: envOr("MEALCARD_RESPONSIBLE_MARKER", DefaultResponsibleMarker),
		ReconcileSpec:     envOr("MEALCARD_RECONCILE_CRON", "0 23 * * *"),
		SecondarySpec:     envOr("MEALCARD_SECONDARY_CRON", "*/20 * * * *"),
		FinalizeSpec:      envOr("MEALCARD_FINALIZE_CRON", "0 23 * * *"),
		EpochTTL:          24 * time.Hour,
	}

	if brokers := os.Getenv("MEALCARD_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("MEALCARD_EPOCH_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			cfg.EpochTTL = parsed
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
