package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the gateway.
type Config struct {
	Env      string
	HTTPPort string
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LiteLLM  LiteLLMConfig
	Supabase SupabaseConfig
	Backend  BackendConfig
	Cache    CacheConfig
	Queue    SignatureQueueConfig
	Slack    SlackConfig
	Dstack   DstackConfig

	// ModelAliasFile is an optional YAML file overlaying the LiteLLM router aliases.
	ModelAliasFile string
	RunMigrations  bool
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string // json or text
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LiteLLMConfig points at the upstream proxy.
type LiteLLMConfig struct {
	APIURL    string
	MasterKey string
	// SaltKey decrypts values LiteLLM stored in its database. Falls back to MasterKey.
	SaltKey string
	Timeout time.Duration
}

type SupabaseConfig struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
}

// BackendConfig holds settings for calls to private model replicas.
type BackendConfig struct {
	AttestationTimeout time.Duration
	SignatureTimeout   time.Duration
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// CacheConfig holds in-process cache settings
type CacheConfig struct {
	AttestationTTL    time.Duration
	AttestationSize   int
	RouterSettingsTTL time.Duration
	ModelListTTL      time.Duration
	ModelListSize     int
	ChatIndexTTL      time.Duration
	SweepSchedule     string
}

// SignatureQueueConfig configures asynchronous signature persistence.
type SignatureQueueConfig struct {
	UseRedis     bool
	Name         string
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type SlackConfig struct {
	WebhookURL string
	Tag        string
}

// DstackConfig locates the local dstack agent that produces gateway quotes.
type DstackConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// IsDevelopment reports whether internal error details may be exposed.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SigningKey returns the secret LiteLLM used to encrypt stored credentials.
func (c *LiteLLMConfig) SigningKey() string {
	if c.SaltKey != "" {
		return c.SaltKey
	}
	return c.MasterKey
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "":
		return defaultValue
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnvString("ENV", "production"),
		HTTPPort: getEnvString("HTTP_PORT", "3000"),
		Log: LogConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		LiteLLM: LiteLLMConfig{
			APIURL:    strings.TrimRight(os.Getenv("LITELLM_API_URL"), "/"),
			MasterKey: os.Getenv("LITELLM_MASTER_KEY"),
			SaltKey:   os.Getenv("LITELLM_SALT_KEY"),
			Timeout:   getEnvDuration("LITELLM_TIMEOUT", 10*time.Minute),
		},
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			Timeout:   getEnvDuration("SUPABASE_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			AttestationTimeout: getEnvDuration("FETCH_ATTESTATION_REPORT_TIMEOUT", 10*time.Second),
			SignatureTimeout:   getEnvDuration("FETCH_SIGNATURE_TIMEOUT", 10*time.Second),
			BreakerMaxRequests: uint32(getEnvInt("BACKEND_BREAKER_MAX_REQUESTS", 5)),
			BreakerInterval:    getEnvDuration("BACKEND_BREAKER_INTERVAL", 1*time.Minute),
			BreakerTimeout:     getEnvDuration("BACKEND_BREAKER_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			AttestationTTL:    getEnvDuration("ATTESTATION_CACHE_TTL", 10*time.Minute),
			AttestationSize:   getEnvInt("ATTESTATION_CACHE_SIZE", 500),
			RouterSettingsTTL: getEnvDuration("ROUTER_SETTINGS_CACHE_TTL", 30*time.Minute),
			ModelListTTL:      getEnvDuration("LIST_MODELS_CACHE_TTL", 10*time.Minute),
			ModelListSize:     getEnvInt("LIST_MODELS_CACHE_SIZE", 200),
			ChatIndexTTL:      getEnvDuration("CHAT_INDEX_TTL", 24*time.Hour),
			SweepSchedule:     getEnvString("CACHE_SWEEP_SCHEDULE", "@every 1m"),
		},
		Queue: SignatureQueueConfig{
			UseRedis:     getEnvBool("SIGNATURE_QUEUE_USE_REDIS", false),
			Name:         getEnvString("SIGNATURE_QUEUE_NAME", "signatures"),
			BatchSize:    getEnvInt("SIGNATURE_QUEUE_BATCH_SIZE", 50),
			BatchTimeout: getEnvDuration("SIGNATURE_QUEUE_BATCH_TIMEOUT", 2*time.Second),
			MaxRetries:   getEnvInt("SIGNATURE_QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("SIGNATURE_QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		Slack: SlackConfig{
			WebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
			Tag:        getEnvString("SLACK_TAG", "nearai-cloud-server"),
		},
		Dstack: DstackConfig{
			Endpoint: os.Getenv("DSTACK_ENDPOINT"),
			Timeout:  getEnvDuration("DSTACK_TIMEOUT", 10*time.Second),
		},
		ModelAliasFile: os.Getenv("MODEL_ALIAS_FILE"),
		RunMigrations:  getEnvBool("RUN_MIGRATIONS", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"DATABASE_URL":       c.Database.URL,
		"LITELLM_API_URL":    c.LiteLLM.APIURL,
		"LITELLM_MASTER_KEY": c.LiteLLM.MasterKey,
		"SUPABASE_URL":       c.Supabase.URL,
		"SUPABASE_ANON_KEY":  c.Supabase.AnonKey,
	}
	for name, val := range required {
		if val == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}
