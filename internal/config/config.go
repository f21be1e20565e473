package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/policy"
)

const (
	insecureJWTSecret = "dev-secret"
	minJWTSecretLen   = 32
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Discord      DiscordConfig
	Ticket       TicketConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Events       EventsConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	HTTPEnabled           bool
}

// DiscordConfig holds the bot session settings.
type DiscordConfig struct {
	Token         string
	GuildID       domain.Snowflake
	CommandPrefix string
	// OwnerID may post ticket panels.
	OwnerID domain.Snowflake
}

// TicketConfig is the static ticket policy: where tickets live, who staffs
// them and who may override.
type TicketConfig struct {
	ContainerID   domain.Snowflake
	LogChannelID  domain.Snowflake
	StaffRoles    []domain.Snowflake
	OverrideID    domain.Snowflake
	OverrideScope policy.OverrideScope
	PageRoles     map[domain.TicketCategory]domain.Snowflake
	CloseDelay    time.Duration
	PanelImageURL string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EventsConfig controls the lifecycle event stream.
type EventsConfig struct {
	// RedisStream is empty when streaming is disabled.
	RedisStream string
	MaxLen      int64
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Console bool
	Service string
}

// AuthConfig defines authentication parameters for the HTTP API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	// APIKeyHash is the bcrypt hash of the integration key exchanged for tokens.
	APIKeyHash string
}

// RateLimitConfig bounds per-client HTTP request rates.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// NotificationConfig controls lifecycle notices.
type NotificationConfig struct {
	LogChannelID domain.Snowflake
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ticket, err := loadTicketConfig()
	if err != nil {
		return nil, err
	}
	guildID, err := getEnvAsSnowflake("DISCORD_GUILD_ID")
	if err != nil {
		return nil, err
	}
	ownerID, err := getEnvAsSnowflake("DISCORD_COMMAND_OWNER_ID")
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	rps, err := strconv.ParseFloat(getEnv("HTTP_RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_RATE_LIMIT_RPS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			HTTPEnabled:           getEnvAsBool("HTTP_ENABLED", false),
		},
		Discord: DiscordConfig{
			Token:         os.Getenv("DISCORD_TOKEN"),
			GuildID:       guildID,
			CommandPrefix: getEnv("DISCORD_COMMAND_PREFIX", "$"),
			OwnerID:       ownerID,
		},
		Ticket: *ticket,
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Events: EventsConfig{
			RedisStream: os.Getenv("EVENTS_REDIS_STREAM"),
			MaxLen:      int64(getEnvAsInt("EVENTS_REDIS_STREAM_MAXLEN", 10000)),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Console: getEnvAsBool("LOG_CONSOLE", false),
			Service: getEnv("APP_NAME", "ticket-bot"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			APIKeyHash:            os.Getenv("AUTH_API_KEY_HASH"),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: getEnvAsInt("HTTP_RATE_LIMIT_BURST", 10),
		},
		Notification: NotificationConfig{
			LogChannelID: ticket.LogChannelID,
		},
	}

	if cfg.App.HTTPEnabled {
		if err := cfg.Auth.validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validate rejects auth settings under which a caller could mint a token for
// any actor.
func (a AuthConfig) validate() error {
	switch {
	case a.JWTSecret == "" || a.JWTSecret == insecureJWTSecret:
		return errors.New("AUTH_JWT_SECRET must be set to a private value when HTTP_ENABLED is true")
	case len(a.JWTSecret) < minJWTSecretLen:
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	case a.APIKeyHash == "":
		return errors.New("AUTH_API_KEY_HASH is required when HTTP_ENABLED is true")
	}
	return nil
}

func loadTicketConfig() (*TicketConfig, error) {
	containerID, err := getEnvAsSnowflake("TICKET_CATEGORY_ID")
	if err != nil {
		return nil, err
	}
	if containerID == 0 {
		return nil, errors.New("TICKET_CATEGORY_ID is required")
	}
	logChannelID, err := getEnvAsSnowflake("TICKET_LOG_CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	staffRoles, err := getEnvAsSnowflakes("TICKET_STAFF_ROLE_IDS")
	if err != nil {
		return nil, err
	}
	overrideID, err := getEnvAsSnowflake("TICKET_OVERRIDE_USER_ID")
	if err != nil {
		return nil, err
	}
	scope, err := policy.ParseOverrideScope(os.Getenv("TICKET_OVERRIDE_SCOPE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICKET_OVERRIDE_SCOPE: %w", err)
	}

	pageRoles := make(map[domain.TicketCategory]domain.Snowflake)
	for _, category := range domain.Categories {
		key := "TICKET_ROLE_" + strings.ToUpper(string(category))
		role, err := getEnvAsSnowflake(key)
		if err != nil {
			return nil, err
		}
		if role != 0 {
			pageRoles[category] = role
		}
	}

	delay := getEnvAsInt("TICKET_CLOSE_DELAY_SECONDS", 5)
	if delay < 0 {
		delay = 0
	}

	return &TicketConfig{
		ContainerID:   containerID,
		LogChannelID:  logChannelID,
		StaffRoles:    staffRoles,
		OverrideID:    overrideID,
		OverrideScope: scope,
		PageRoles:     pageRoles,
		CloseDelay:    time.Duration(delay) * time.Second,
		PanelImageURL: os.Getenv("TICKET_PANEL_IMAGE_URL"),
	}, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsSnowflake returns 0 when key is unset.
func getEnvAsSnowflake(key string) (domain.Snowflake, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, nil
	}
	id, ok := domain.ParseSnowflake(val)
	if !ok {
		return 0, fmt.Errorf("invalid %s: %q is not an id", key, val)
	}
	return id, nil
}

func getEnvAsSnowflakes(key string) ([]domain.Snowflake, error) {
	var ids []domain.Snowflake
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, ok := domain.ParseSnowflake(part)
		if !ok {
			return nil, fmt.Errorf("invalid %s: %q is not an id", key, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
