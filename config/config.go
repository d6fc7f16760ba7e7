package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	NATS     NATSConfig
	MinIO    MinIOConfig
	SMTP     SMTPConfig
	Browser  BrowserConfig
	Monitor  MonitorConfig
	Import   ImportConfig
	HTTP     HTTPConfig
	Tracing  TracingConfig
	Log      LogConfig
}

// PostgresConfig is the monitoring run log. An empty host disables it.
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST"`
	Port     string `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"emlak"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"emlak123"`
	DB       string `env:"POSTGRES_DB" env-default:"emlak_ingest"`
	SSLMode  string `env:"POSTGRES_SSLMODE" env-default:"disable"`
}

// MongoConfig is the document store. An empty URI selects the in-memory store.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE" env-default:"emlak"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type NATSConfig struct {
	URL          string `env:"NATS_URL"`
	Stream       string `env:"NATS_IMPORT_STREAM" env-default:"IMPORTS"`
	Subject      string `env:"NATS_IMPORT_SUBJECT" env-default:"imports.confirmed"`
	NotifyPrefix string `env:"NATS_NOTIFY_PREFIX" env-default:"notify"`
}

type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"property-photos"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_SENDER_EMAIL" env-default:"bildirim@emlak.local"`
}

type BrowserConfig struct {
	ChromeBin string `env:"CHROME_BIN"`
	Headless  bool   `env:"BROWSER_HEADLESS" env-default:"true"`
}

type MonitorConfig struct {
	Cron       string `env:"MONITOR_CRON" env-default:"0 9,18 * * *"`
	TZ         string `env:"MONITOR_TZ" env-default:"Europe/Istanbul"`
	MaxResults int    `env:"MONITOR_MAX_RESULTS" env-default:"20"`
	CSVPath    string `env:"CSV_OUTPUT_PATH" env-default:"./output/discoveries.csv"`
}

type ImportConfig struct {
	MinDetailFields int           `env:"MIN_DETAIL_FIELDS" env-default:"0"`
	ResizePhotos    bool          `env:"RESIZE_PHOTOS" env-default:"false"`
	PhotoTimeout    time.Duration `env:"PHOTO_TIMEOUT" env-default:"30s"`
}

type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" env-default:":8080"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"emlak-ingest"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"console"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	p := c.Postgres
	return "host=" + p.Host +
		" port=" + p.Port +
		" user=" + p.User +
		" password=" + p.Password +
		" dbname=" + p.DB +
		" sslmode=" + p.SSLMode
}

// Location resolves MONITOR_TZ, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Monitor.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
