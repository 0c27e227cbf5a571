// Package config предоставялет структуры и функции для парсинга и загрузки конфига
package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	Cache                   `yaml:"cache"`
	JWTToken                `yaml:"jwttoken"`
	RefreshToken            `yaml:"refresh_token"`
	Lockout                 `yaml:"lockout"`
	Reconciler              `yaml:"reconciler"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Mail                    `yaml:"mail"`
	ClientPaths             `yaml:"client_paths"`
	AdminUser               `yaml:"admin_user"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Cache настройки кэша пользователей
type Cache struct {
	Driver          string        `yaml:"driver" env:"CACHE_DRIVER" env-default:"memory"`
	TTL             time.Duration `yaml:"ttl" env-default:"1h"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env-default:"10m"`
	RedisConnection `yaml:"redis_connection"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с access-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"1h"`
}

// RefreshToken настройки шифрованного refresh-токена
type RefreshToken struct {
	// Key — 32 байта в hex (64 символа)
	Key        string        `yaml:"key" env:"REFRESH_TOKEN_KEY" env-required:"true"`
	RefreshTTL time.Duration `yaml:"ttl" env-default:"336h"`
}

// Lockout настройки блокировки после неудачных попыток входа
type Lockout struct {
	MaxFailedAttempts int           `yaml:"max_failed_attempts" env-default:"5"`
	Duration          time.Duration `yaml:"duration" env-default:"5m"`
}

// Reconciler настройки фоновой сверки ролей с подписками
type Reconciler struct {
	Interval       time.Duration `yaml:"interval" env-default:"1h"`
	MaxConcurrency int           `yaml:"max_concurrency" env-default:"16"`
}

// RabbitMQ настройки подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP настройки почтового сервера
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"pass" env:"SMTP_PASS"`
}

// Mail настройки формирования писем
type Mail struct {
	MailFrom     string `yaml:"from" env:"MAIL_FROM"`
	TemplatesDir string `yaml:"templates_dir" env-default:"./templates/mail"`
	// SaveToDir — если задан, письма складываются файлами вместо отправки по SMTP
	SaveToDir string `yaml:"save_to_dir" env:"MAIL_SAVE_TO_DIR"`
}

// ClientPaths пути клиентского приложения для ссылок в письмах
type ClientPaths struct {
	BaseURL       string `yaml:"base_url" env:"CLIENT_BASE_URL" env-default:"http://localhost:3000"`
	ConfirmEmail  string `yaml:"confirm_email" env-default:"confirm-email"`
	ResetPassword string `yaml:"reset_password" env-default:"reset-password"`
}

// AdminUser учётная запись администратора, создаваемая при старте
type AdminUser struct {
	AdminUsername string `yaml:"username" env:"ADMIN_USERNAME"`
	AdminEmail    string `yaml:"email" env:"ADMIN_EMAIL"`
	AdminPassword string `yaml:"password" env:"ADMIN_PASSWORD"`
}

// RateLimit ограничение частоты анонимных запросов
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому лежит в CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по пути path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность значений, которые cleanenv проверить не может.
func (c *Config) Validate() error {
	if _, err := c.RefreshKey(); err != nil {
		return err
	}
	switch c.Driver {
	case "memory":
	case "redis":
		if c.AddressRedis == "" {
			return fmt.Errorf("cache driver redis requires redis_connection.addressredis")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Driver)
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler interval must be positive")
	}
	return nil
}

// RefreshKey декодирует ключ шифрования refresh-токенов.
func (c *Config) RefreshKey() ([]byte, error) {
	key, err := hex.DecodeString(c.RefreshToken.Key)
	if err != nil {
		return nil, fmt.Errorf("refresh_token.key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("refresh_token.key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Cache:\n"+
			"  Driver: %s\n"+
			"  TTL: %s\n"+
			"  RedisAddr: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"RefreshToken:\n"+
			"  TTL: %s\n"+
			"Reconciler:\n"+
			"  Interval: %s\n"+
			"  MaxConcurrency: %d\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Driver,
		c.TTL,
		c.AddressRedis,
		c.TokenTTL,
		c.RefreshTTL,
		c.Reconciler.Interval,
		c.MaxConcurrency,
	)
}
