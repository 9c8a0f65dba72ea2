// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvProd значение поля Env для боевого окружения.
const EnvProd = "prod"

// MinJWTSecretLength минимальная длина секрета подписи токенов в байтах.
const MinJWTSecretLength = 32

var (
	// ErrWeakJWTSecret секрет подписи токенов короче MinJWTSecretLength.
	ErrWeakJWTSecret = errors.New("jwt secret must be at least 32 bytes")
	// ErrSentinelInProduction обход подписи для бота запрошен в боевом окружении.
	ErrSentinelInProduction = errors.New("bot sentinel auth cannot be enabled in production")
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	JWTToken                `yaml:"jwttoken"`
	Telegram                `yaml:"telegram"`
	Webhook                 `yaml:"webhook"`
	PaymentGateway          `yaml:"payment_gateway"`
	Provisioning            `yaml:"provisioning"`
	RabbitMQ                `yaml:"rabbitmq"`
	Scheduler               `yaml:"scheduler"`
	Referral                `yaml:"referral"`
	Pricing                 `yaml:"pricing"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токенами
type JWTToken struct {
	JWTSecretKey     string        `yaml:"jwt_secret_key" env:"JWT_SECRET"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl" env-default:"1h"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	SingleUseRefresh bool          `yaml:"single_use_refresh" env:"JWT_SINGLE_USE_REFRESH" env-default:"true"`
}

// Telegram настройки проверки подписи Telegram и deep-link входа.
type Telegram struct {
	BotToken    string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	BotUsername string `yaml:"bot_username" env:"TELEGRAM_BOT_USERNAME"`
	// AllowBotSentinel разрешает доверенному боту присылать claim без подписи.
	AllowBotSentinel bool `yaml:"allow_bot_sentinel" env:"ALLOW_BOT_SENTINEL"`
	// BotAPIKeyHash bcrypt-хэш ключа, которым бот подтверждает deep-link сессии.
	BotAPIKeyHash   string        `yaml:"bot_api_key_hash" env:"BOT_API_KEY_HASH"`
	LoginSessionTTL time.Duration `yaml:"login_session_ttl" env-default:"5m"`
}

// Webhook настройки приёма вебхуков платёжного шлюза.
type Webhook struct {
	CheckIP            bool          `yaml:"check_ip"`
	IPAllowList        []string      `yaml:"ip_allow_list"`
	CheckTimestamp     bool          `yaml:"check_timestamp"`
	TimestampTolerance time.Duration `yaml:"timestamp_tolerance" env-default:"5m"`
	DedupTTL           time.Duration `yaml:"dedup_ttl" env-default:"24h"`
}

// PaymentGateway настройки клиента платёжного шлюза.
type PaymentGateway struct {
	APIURL        string        `yaml:"api_url" env-default:"https://api.yookassa.ru/v3"`
	ShopID        string        `yaml:"shop_id" env:"PAYMENT_SHOP_ID"`
	SecretKey     string        `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
}

// Provisioning настройки клиента панели выдачи доступа.
type Provisioning struct {
	BaseURL       string        `yaml:"base_url" env:"PANEL_URL"`
	Username      string        `yaml:"username" env:"PANEL_USERNAME"`
	Password      string        `yaml:"password" env:"PANEL_PASSWORD"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
	DataLimitByte int64         `yaml:"data_limit_bytes"`
}

// RabbitMQ настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Scheduler интервалы фоновых задач.
type Scheduler struct {
	SweepInterval     time.Duration `yaml:"sweep_interval" env-default:"1h"`
	WarnInterval      time.Duration `yaml:"warn_interval" env-default:"6h"`
	WarnWindow        time.Duration `yaml:"warn_window" env-default:"24h"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" env-default:"15m"`
	SessionMaxAge     time.Duration `yaml:"session_max_age" env-default:"1h"`
	BatchSize         int           `yaml:"batch_size" env-default:"100"`
	ProvisioningDelay time.Duration `yaml:"provisioning_delay" env-default:"200ms"`
}

// Referral настройки реферальной программы.
type Referral struct {
	BonusAmount int64 `yaml:"bonus_amount" env-default:"5000"`
}

// Pricing цены тарифов в минимальных единицах валюты.
type Pricing struct {
	Currency  string           `yaml:"currency" env-default:"RUB"`
	Prices    map[string]int64 `yaml:"prices"`
	ReturnURL string           `yaml:"return_url" env:"PAYMENT_RETURN_URL"`
}

// RateLimit лимиты запросов на один IP для auth-эндпоинтов.
type RateLimit struct {
	StrictRPS   float64 `yaml:"strict_rps" env-default:"0.2"`
	StrictBurst int     `yaml:"strict_burst" env-default:"5"`
	PollRPS     float64 `yaml:"poll_rps" env-default:"2"`
	PollBurst   int     `yaml:"poll_burst" env-default:"20"`
}

// IsProduction сообщает, запущен ли сервис в боевом окружении.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProd
}

// Validate проверяет инварианты, без которых сервис не должен обслуживать трафик.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if len(c.JWTSecretKey) < MinJWTSecretLength {
		return fmt.Errorf("%s: %w", op, ErrWeakJWTSecret)
	}
	if c.IsProduction() && c.AllowBotSentinel {
		return fmt.Errorf("%s: %w", op, ErrSentinelInProduction)
	}
	return nil
}

// MustLoad функция для загрузки конфига. Переменные из .env подхватываются, если файл есть.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и проверяет его.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
