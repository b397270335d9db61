package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/triviaroom/go/internal/dbconfig"
	"github.com/mcdev12/triviaroom/go/internal/room"
)

// Config is the server configuration assembled from the environment and the rules file.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	NATSURL         string // empty disables the event mirror
	ArchiveEnabled  bool
	Database        dbconfig.Config
	RulesFile       string
	Rules           room.Rules
	ShutdownTimeout time.Duration
}

// Load reads .env (if present), the environment, and the optional rules file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		NATSURL:         os.Getenv("NATS_URL"),
		ArchiveEnabled:  getEnvAsBool("ARCHIVE_ENABLED", false),
		Database:        dbconfig.NewConfigFromEnv(),
		RulesFile:       os.Getenv("GAME_RULES_FILE"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.RulesFile == "" {
		cfg.Rules = room.DefaultRules()
		return cfg, nil
	}

	rules, err := LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules
	return cfg, nil
}

// LoadRules reads a YAML rules file. Fields left out of the file keep their defaults.
func LoadRules(path string) (room.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return room.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	defaults := room.DefaultRules()

	// Decode over the defaults so explicit zero values survive. Tiers is cleared first so
	// a file's tier set replaces the default one instead of merging into it.
	rules := defaults
	rules.Tiers = nil
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return room.Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if rules.Tiers == nil {
		rules.Tiers = defaults.Tiers
	}

	if err := rules.Validate(); err != nil {
		return room.Rules{}, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
