package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, overridable with JOURNAL_CONFIG.
var ConfigPath = "config.yaml"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	QueueBackendRedis = "redis"
	QueueBackendAMQP  = "amqp"
	QueueBackendLocal = "local"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	StoreDriver        string   `yaml:"storeDriver"`
	DatabaseURL        string   `yaml:"databaseURL"`
	TimeZone           string   `yaml:"timeZone"`
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	TrustedProxies     []string `yaml:"trustedProxies"`

	JWTSecret           string `yaml:"jwtSecret"`
	JWTPrivateKeyPath   string `yaml:"jwtPrivateKeyPath"`
	JWTPublicKeyPath    string `yaml:"jwtPublicKeyPath"`
	JWTKeyID            string `yaml:"jwtKeyId"`
	JWTVerifyPublicKeys string `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer           string `yaml:"jwtIssuer"`
	JWTAudience         string `yaml:"jwtAudience"`
	JWTLeeway           string `yaml:"jwtLeeway"`
	SessionTTL          string `yaml:"sessionTTL"`
	RefreshTTL          string `yaml:"refreshTTL"`

	SignupRateLimitPerMinute  int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute   int `yaml:"loginRateLimitPerMinute"`
	RefreshRateLimitPerMinute int `yaml:"refreshRateLimitPerMinute"`

	AI           AIConfig           `yaml:"ai"`
	Conversation ConversationConfig `yaml:"conversation"`
	Queue        QueueConfig        `yaml:"queue"`
	Export       ExportConfig       `yaml:"export"`
}

type AIConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"baseURL"`
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
	Timeout   string `yaml:"timeout"`
}

type ConversationConfig struct {
	MaxMessages      int `yaml:"maxMessages"`
	SummaryThreshold int `yaml:"summaryThreshold"`
}

type QueueConfig struct {
	Backend     string `yaml:"backend"`
	Stream      string `yaml:"stream"`
	Group       string `yaml:"group"`
	AMQPURL     string `yaml:"amqpURL"`
	AMQPQueue   string `yaml:"amqpQueue"`
	Concurrency int    `yaml:"concurrency"`
	MaxRetries  int    `yaml:"maxRetries"`
	JobTimeout  string `yaml:"jobTimeout"`
}

type ExportConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	URLTTL         string `yaml:"urlTTL"`
}

// Load reads config from path (defaults to JOURNAL_CONFIG, then config.yaml),
// applies environment overrides and defaults, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("JOURNAL_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTPrivateKeyPath, "JWT_PRIVATE_KEY_PATH")
	setString(&cfg.JWTPublicKeyPath, "JWT_PUBLIC_KEY_PATH")
	setString(&cfg.JWTKeyID, "JWT_KEY_ID")
	setString(&cfg.JWTVerifyPublicKeys, "JWT_VERIFY_PUBLIC_KEYS")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	setInt(&cfg.SignupRateLimitPerMinute, "AUTH_SIGNUP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginRateLimitPerMinute, "AUTH_LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.RefreshRateLimitPerMinute, "AUTH_REFRESH_RATE_LIMIT_PER_MINUTE")

	setString(&cfg.AI.Provider, "AI_PROVIDER")
	setString(&cfg.AI.BaseURL, "AI_BASE_URL")
	setString(&cfg.AI.Model, "AI_MODEL")
	switch strings.ToLower(cfg.AI.Provider) {
	case "", "anthropic":
		setString(&cfg.AI.APIKey, "AI_API_KEY", "ANTHROPIC_API_KEY")
	case "gemini":
		setString(&cfg.AI.APIKey, "AI_API_KEY", "GEMINI_API_KEY")
	default:
		setString(&cfg.AI.APIKey, "AI_API_KEY")
	}

	setString(&cfg.Queue.Backend, "QUEUE_BACKEND")
	setString(&cfg.Queue.AMQPURL, "AMQP_URL")

	setString(&cfg.Export.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.Export.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Export.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Export.MinioBucket, "MINIO_BUCKET")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreDriverPostgres
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.Timeout == "" {
		cfg.AI.Timeout = "30s"
	}
	if cfg.Conversation.MaxMessages == 0 {
		cfg.Conversation.MaxMessages = 10
	}
	if cfg.Conversation.SummaryThreshold == 0 {
		cfg.Conversation.SummaryThreshold = 10
	}
	if cfg.Queue.Backend == "" {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			cfg.Queue.Backend = QueueBackendRedis
		} else {
			cfg.Queue.Backend = QueueBackendLocal
		}
	}
	if cfg.Queue.Stream == "" {
		cfg.Queue.Stream = "dropjournal:jobs"
	}
	if cfg.Queue.Group == "" {
		cfg.Queue.Group = "journal-workers"
	}
	if cfg.Queue.AMQPQueue == "" {
		cfg.Queue.AMQPQueue = "dropjournal.jobs"
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 2
	}
	if cfg.Queue.JobTimeout == "" {
		cfg.Queue.JobTimeout = "60s"
	}
	if cfg.Export.URLTTL == "" {
		cfg.Export.URLTTL = "15m"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown storeDriver %q (postgres|memory)", cfg.StoreDriver)
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("config: invalid timeZone %q: %w", cfg.TimeZone, err)
	}

	if cfg.JWTPrivateKeyPath == "" && cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret or jwtPrivateKeyPath is required (set JWT_SECRET or JWT_PRIVATE_KEY_PATH)")
	}
	if cfg.JWTPrivateKeyPath == "" && len(cfg.JWTSecret) < 32 {
		return errors.New("config: jwtSecret must be at least 32 bytes")
	}
	if cfg.JWTPrivateKeyPath == "" && cfg.JWTPublicKeyPath != "" {
		return errors.New("config: jwtPublicKeyPath requires jwtPrivateKeyPath")
	}
	if _, err := ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for name, raw := range map[string]string{
		"jwtLeeway":        cfg.JWTLeeway,
		"sessionTTL":       cfg.SessionTTL,
		"refreshTTL":       cfg.RefreshTTL,
		"ai.timeout":       cfg.AI.Timeout,
		"queue.jobTimeout": cfg.Queue.JobTimeout,
		"export.urlTTL":    cfg.Export.URLTTL,
	} {
		if _, err := ParseDuration(name, raw); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.RefreshRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}

	switch strings.ToLower(cfg.AI.Provider) {
	case "anthropic", "gemini":
		if strings.TrimSpace(cfg.AI.APIKey) == "" {
			return fmt.Errorf("config: ai.apiKey is required for provider %s (set AI_API_KEY)", cfg.AI.Provider)
		}
	case "openai", "openai-compat":
		if strings.TrimSpace(cfg.AI.BaseURL) == "" {
			return errors.New("config: ai.baseURL is required for openai-compatible providers")
		}
	case "ollama":
	default:
		return fmt.Errorf("config: unknown ai.provider %q (anthropic|openai|ollama|gemini)", cfg.AI.Provider)
	}
	if strings.TrimSpace(cfg.AI.Model) == "" {
		return errors.New("config: ai.model is required")
	}
	if cfg.AI.MaxTokens < 0 {
		return errors.New("config: ai.maxTokens must be >= 0")
	}

	if cfg.Conversation.MaxMessages < 2 {
		return errors.New("config: conversation.maxMessages must be >= 2")
	}
	if cfg.Conversation.SummaryThreshold < 1 {
		return errors.New("config: conversation.summaryThreshold must be >= 1")
	}

	switch cfg.Queue.Backend {
	case QueueBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis queue backend")
		}
	case QueueBackendAMQP:
		if strings.TrimSpace(cfg.Queue.AMQPURL) == "" {
			return errors.New("config: queue.amqpURL is required for the amqp queue backend (set AMQP_URL)")
		}
	case QueueBackendLocal:
	default:
		return fmt.Errorf("config: unknown queue.backend %q (redis|amqp|local)", cfg.Queue.Backend)
	}
	if cfg.Queue.Concurrency < 1 {
		return errors.New("config: queue.concurrency must be >= 1")
	}

	if cfg.Export.Enabled {
		if strings.TrimSpace(cfg.Export.MinioEndpoint) == "" || strings.TrimSpace(cfg.Export.MinioBucket) == "" {
			return errors.New("config: export.minioEndpoint and export.minioBucket are required when export is enabled")
		}
	}
	return nil
}

// ParseDuration parses an optional duration; empty means zero.
func ParseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

// MustDuration is ParseDuration for values already checked by Load.
func MustDuration(raw string) time.Duration {
	dur, _ := ParseDuration("", raw)
	return dur
}

// ParseVerifyPublicKeys parses "kid=path,kid2=path2" into a map.
func ParseVerifyPublicKeys(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid jwtVerifyPublicKeys entry %q", pair)
		}
		kid := strings.TrimSpace(parts[0])
		path := strings.TrimSpace(parts[1])
		if kid == "" || path == "" {
			return nil, fmt.Errorf("invalid jwtVerifyPublicKeys entry %q", pair)
		}
		out[kid] = path
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
