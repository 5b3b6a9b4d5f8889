package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds all configuration for a service
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	Version   string          `mapstructure:"version"`
}

// ServiceConfig holds service-specific configuration
type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME"`
	Environment string `mapstructure:"environment" envconfig:"ENVIRONMENT"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port         int           `mapstructure:"port" envconfig:"HTTP_PORT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" envconfig:"HTTP_IDLE_TIMEOUT"`
	// CORSOrigins lists the portal origins allowed to call the API with credentials
	CORSOrigins        []string `mapstructure:"cors_origins" envconfig:"HTTP_CORS_ORIGINS"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" envconfig:"HTTP_RATE_LIMIT_PER_MINUTE"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst" envconfig:"HTTP_RATE_LIMIT_BURST"`
}

// MongoConfig holds the document store configuration
type MongoConfig struct {
	URI                    string        `mapstructure:"uri" envconfig:"MONGO_URI"`
	Database               string        `mapstructure:"database" envconfig:"MONGO_DATABASE"`
	NotificationCollection string        `mapstructure:"notification_collection" envconfig:"MONGO_NOTIFICATION_COLLECTION"`
	StatusCollection       string        `mapstructure:"status_collection" envconfig:"MONGO_STATUS_COLLECTION"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout" envconfig:"MONGO_CONNECT_TIMEOUT"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size" envconfig:"MONGO_MAX_POOL_SIZE"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host" envconfig:"REDIS_HOST"`
	Port         int           `mapstructure:"port" envconfig:"REDIS_PORT"`
	Password     string        `mapstructure:"password" envconfig:"REDIS_PASSWORD"`
	DB           int           `mapstructure:"db" envconfig:"REDIS_DB"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT"`
	CountTTL     time.Duration `mapstructure:"count_ttl" envconfig:"REDIS_COUNT_TTL"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers" envconfig:"KAFKA_BROKERS"`
	ClientID        string   `mapstructure:"client_id" envconfig:"KAFKA_CLIENT_ID"`
	ConsumerGroup   string   `mapstructure:"consumer_group" envconfig:"KAFKA_CONSUMER_GROUP"`
	EventsTopic     string   `mapstructure:"events_topic" envconfig:"KAFKA_EVENTS_TOPIC"`
	BroadcastTopics []string `mapstructure:"broadcast_topics" envconfig:"KAFKA_BROADCAST_TOPICS"`
}

// AuthConfig holds session token validation settings. Tokens are issued elsewhere.
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET"`
	SessionCookie string `mapstructure:"session_cookie" envconfig:"SESSION_COOKIE"`
	AdminRole     string `mapstructure:"admin_role" envconfig:"ADMIN_ROLE"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `mapstructure:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" envconfig:"JAEGER_ENDPOINT"`
	ServiceName    string `mapstructure:"service_name" envconfig:"TELEMETRY_SERVICE_NAME"`
	// SampleRatio is the fraction of root spans kept; child spans follow their parent
	SampleRatio float64 `mapstructure:"sample_ratio" envconfig:"TRACE_SAMPLE_RATIO"`
	Version     string  `mapstructure:"-" ignored:"true"`
	Environment string  `mapstructure:"-" ignored:"true"`
}

// InboxConfig configures the notification client used by the portal
type InboxConfig struct {
	BaseURL        string        `mapstructure:"base_url" envconfig:"INBOX_BASE_URL"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"INBOX_REQUEST_TIMEOUT"`
	PostTimeout    time.Duration `mapstructure:"post_timeout" envconfig:"INBOX_POST_TIMEOUT"`
	PageSize       int           `mapstructure:"page_size" envconfig:"INBOX_PAGE_SIZE"`
	Locale         string        `mapstructure:"locale" envconfig:"INBOX_LOCALE"`
	WatchSchedule  string        `mapstructure:"watch_schedule" envconfig:"INBOX_WATCH_SCHEDULE"`
}

// Load loads configuration from files and environment
func Load(serviceName string) (*Config, error) {
	var cfg Config

	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg.Service.Name = serviceName
	cfg.Telemetry.ServiceName = serviceName

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("./configs/services/" + serviceName)
	v.AddConfigPath(".")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	// Service-specific environment variables
	if err := envconfig.Process(toEnvPrefix(serviceName), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process service env vars: %w", err)
	}

	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = serviceName + "-consumer"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = serviceName
	}
	if cfg.Inbox.PageSize <= 0 {
		cfg.Inbox.PageSize = 5
	}

	if version := os.Getenv("VERSION"); version != "" {
		cfg.Version = version
	} else {
		cfg.Version = "dev"
	}
	cfg.Telemetry.Version = cfg.Version
	cfg.Telemetry.Environment = cfg.Service.Environment

	return &cfg, nil
}

// setDefaults registers the values used when neither config.yaml nor the
// environment sets a key. envconfig only overrides variables that are set.
func setDefaults(v *viper.Viper) {
	for key, value := range map[string]interface{}{
		"service.environment": "development",

		"http.port":                  8080,
		"http.read_timeout":          "10s",
		"http.write_timeout":         "10s",
		"http.idle_timeout":          "120s",
		"http.cors_origins":          []string{"http://localhost:3000"},
		"http.rate_limit_per_minute": 600,
		"http.rate_limit_burst":      100,

		"mongo.uri":                     "mongodb://localhost:27017",
		"mongo.database":                "notification_service",
		"mongo.notification_collection": "user_notifications",
		"mongo.status_collection":       "user_status",
		"mongo.connect_timeout":         "10s",
		"mongo.max_pool_size":           50,

		"redis.host":           "localhost",
		"redis.port":           6379,
		"redis.db":             0,
		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,
		"redis.dial_timeout":   "5s",
		"redis.read_timeout":   "3s",
		"redis.write_timeout":  "3s",
		"redis.count_ttl":      "1m",

		"kafka.events_topic":     "notification-events",
		"kafka.broadcast_topics": []string{"global-notification-events"},

		"auth.jwt_secret":     "super-secret-key",
		"auth.session_cookie": "session_token",
		"auth.admin_role":     "admin",

		"logger.level":       "info",
		"logger.format":      "json",
		"logger.output_path": "stdout",

		"telemetry.metrics_enabled": true,
		"telemetry.tracing_enabled": false,
		"telemetry.jaeger_endpoint": "http://localhost:14268/api/traces",
		"telemetry.sample_ratio":    1.0,

		"inbox.base_url":        "http://localhost:8080",
		"inbox.request_timeout": "10s",
		"inbox.post_timeout":    "5s",
		"inbox.page_size":       5,
		"inbox.locale":          "ja",
		"inbox.watch_schedule":  "@every 30s",
	} {
		v.SetDefault(key, value)
	}
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// toEnvPrefix converts a service name such as "user-notification" to "USER_NOTIFICATION"
func toEnvPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
