package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port               string   `env:"PORT" envDefault:"8080"`
	AppEnv             string   `env:"APP_ENV" envDefault:"development"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	Auth     AuthConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Realtime RealtimeConfig
	AI       AIConfig
	Log      LogConfig
}

type AuthConfig struct {
	JWTSecret           string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiresIn        time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`
	AdminEmail          string        `env:"ADMIN_EMAIL"`
	AllowedEmailDomains []string      `env:"ALLOWED_EMAIL_DOMAINS" envSeparator:","`
	DemoMode            bool          `env:"DEMO_MODE" envDefault:"false"`
	FirebaseProjectID   string        `env:"FIREBASE_PROJECT_ID"`
}

type UploadConfig struct {
	MaxFileSize int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"`
	MaxImages   int   `env:"MAX_IMAGES" envDefault:"5"`
}

// StorageConfig selects where listing images go. Driver is one of gcs, minio or none.
type StorageConfig struct {
	Driver          string `env:"STORAGE_DRIVER" envDefault:"none"`
	Bucket          string `env:"STORAGE_BUCKET" envDefault:"item-images"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Endpoint        string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey       string `env:"MINIO_ACCESS_KEY"`
	SecretKey       string `env:"MINIO_SECRET_KEY"`
	UseSSL          bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	PublicBaseURL   string `env:"STORAGE_PUBLIC_BASE_URL"`
}

// RealtimeConfig selects the fan-out channel. Driver is memory or redis.
type RealtimeConfig struct {
	Driver        string `env:"REALTIME_DRIVER" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AIConfig struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Realtime.Driver = strings.ToLower(strings.TrimSpace(cfg.Realtime.Driver))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
