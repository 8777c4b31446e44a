package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	OKX      OKXConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера (health, metrics, статус)
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// OKXConfig - настройки подключения к OKX
type OKXConfig struct {
	RESTBase     string // базовый URL REST API
	PublicWSURL  string // публичный WebSocket (маркет-данные)
	PrivateWSURL string // приватный WebSocket (баланс, ордера)

	// Путь к файлу ключей: три строки - apiKey, secret, passphrase
	CredentialsFile string

	// Количество WebSocket соединений для маркет-данных:
	// подписки на пары распределяются между ними
	MarketShards int

	// Переподключение с exponential backoff
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// Ping/Pong для проверки живости соединения
	PingInterval time.Duration
	PongTimeout  time.Duration

	// Таймаут установки соединения
	ConnectTimeout time.Duration

	// Останавливать ли процесс при ошибке обработки сообщения
	// маркет-данных (вместо пропуска сообщения)
	FailFastOnHandlerError bool
}

// TradingConfig - торговые параметры арбитража
type TradingConfig struct {
	// Гипотетический стартовый баланс для оценки цепочки конвертаций
	InitialBalance float64

	// Абсолютный порог итогового баланса для квалификации возможности
	ProfitThreshold float64

	// Референсный объём (в валюте расчёта) для проверки ликвидности ног
	RequiredNotional float64

	// Размер первого ордера в валюте расчёта
	OrderSize float64

	// Минимальный торгуемый объём
	MinTradeSize float64

	// Шаг округления объёма ордера
	TickSize float64

	// Комиссия тейкера (доля, 0.0011 = 0.11%)
	FeeRate float64

	// Период цикла оценки треугольников
	EvalInterval time.Duration

	// Период опроса лучшей возможности в состоянии Idle
	IdlePollInterval time.Duration

	// Период опроса подтверждения исполнения ордера
	FillPollInterval time.Duration

	// Максимальное ожидание исполнения ордера;
	// превышение считается ошибкой исполнения
	FillTimeout time.Duration

	// Пауза после ошибки исполнения перед возвратом в Idle
	ErrorCooldown time.Duration

	// Валюты расчёта (старт/финиш арбитража)
	SettlementCurrencies []string

	// Валюты, допустимые в качестве обеих валют средней ноги
	BridgeCurrencies []string

	// Целевые валюты замыкания треугольника при генерации
	AnchorCurrencies []string

	// Исключённые (фиатные) валюты
	ExcludedCurrencies []string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Credentials - API ключи OKX
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "triarb"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		OKX: OKXConfig{
			RESTBase:        getEnv("OKX_REST_BASE", "https://www.okx.com"),
			PublicWSURL:     getEnv("OKX_WS_PUBLIC_URL", "wss://ws.okx.com:8443/ws/v5/public"),
			PrivateWSURL:    getEnv("OKX_WS_PRIVATE_URL", "wss://ws.okx.com:8443/ws/v5/private"),
			CredentialsFile: getEnv("OKX_CREDENTIALS_FILE", "api_keys.txt"),
			MarketShards:    getEnvAsInt("OKX_MARKET_SHARDS", 3),

			ReconnectInitialDelay: getEnvAsDuration("OKX_RECONNECT_INITIAL_DELAY", 5*time.Second),
			ReconnectMaxDelay:     getEnvAsDuration("OKX_RECONNECT_MAX_DELAY", 60*time.Second),

			PingInterval:   getEnvAsDuration("OKX_PING_INTERVAL", 15*time.Second),
			PongTimeout:    getEnvAsDuration("OKX_PONG_TIMEOUT", 10*time.Second),
			ConnectTimeout: getEnvAsDuration("OKX_CONNECT_TIMEOUT", 10*time.Second),

			FailFastOnHandlerError: getEnvAsBool("OKX_FAIL_FAST_ON_HANDLER_ERROR", false),
		},
		Trading: TradingConfig{
			InitialBalance:   getEnvAsFloat("TRADE_INITIAL_BALANCE", 1000),
			ProfitThreshold:  getEnvAsFloat("TRADE_PROFIT_THRESHOLD", 1010),
			RequiredNotional: getEnvAsFloat("TRADE_REQUIRED_NOTIONAL", 200),
			OrderSize:        getEnvAsFloat("TRADE_ORDER_SIZE", 5),
			MinTradeSize:     getEnvAsFloat("TRADE_MIN_TRADE_SIZE", 0.0001),
			TickSize:         getEnvAsFloat("TRADE_TICK_SIZE", 0.0001),
			FeeRate:          getEnvAsFloat("TRADE_FEE_RATE", 0.0011),

			EvalInterval:     getEnvAsDuration("TRADE_EVAL_INTERVAL", 1*time.Second),
			IdlePollInterval: getEnvAsDuration("TRADE_IDLE_POLL_INTERVAL", 2*time.Second),
			FillPollInterval: getEnvAsDuration("TRADE_FILL_POLL_INTERVAL", 200*time.Millisecond),
			FillTimeout:      getEnvAsDuration("TRADE_FILL_TIMEOUT", 30*time.Second),
			ErrorCooldown:    getEnvAsDuration("TRADE_ERROR_COOLDOWN", 2*time.Second),

			SettlementCurrencies: getEnvAsList("TRADE_SETTLEMENT_CURRENCIES",
				[]string{"USDT", "USDC"}),
			BridgeCurrencies: getEnvAsList("TRADE_BRIDGE_CURRENCIES",
				[]string{"BTC", "ETH", "SOL", "OKB", "BCH", "BSV", "LTC"}),
			AnchorCurrencies: getEnvAsList("TRADE_ANCHOR_CURRENCIES",
				[]string{"USDT", "USDC", "BTC", "ETH"}),
			ExcludedCurrencies: getEnvAsList("TRADE_EXCLUDED_CURRENCIES",
				[]string{"USD", "UAH", "EUR", "JPY", "CNY", "GBP", "CHF", "AUD", "CAD",
					"BRL", "SGD", "HKD", "KRW", "RUB", "INR", "MXN", "TRY", "AED"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет критичные параметры
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.OKX.MarketShards < 1 {
		return fmt.Errorf("OKX_MARKET_SHARDS must be at least 1, got %d", c.OKX.MarketShards)
	}

	if c.OKX.ReconnectInitialDelay <= 0 {
		return fmt.Errorf("OKX_RECONNECT_INITIAL_DELAY must be positive, got %v", c.OKX.ReconnectInitialDelay)
	}

	if c.OKX.ReconnectMaxDelay < c.OKX.ReconnectInitialDelay {
		return fmt.Errorf("OKX_RECONNECT_MAX_DELAY must not be less than initial delay")
	}

	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("TRADE_INITIAL_BALANCE must be positive, got %v", c.Trading.InitialBalance)
	}

	if c.Trading.OrderSize <= 0 {
		return fmt.Errorf("TRADE_ORDER_SIZE must be positive, got %v", c.Trading.OrderSize)
	}

	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("TRADE_FEE_RATE must be in [0, 1), got %v", c.Trading.FeeRate)
	}

	if c.Trading.FillTimeout <= 0 {
		return fmt.Errorf("TRADE_FILL_TIMEOUT must be positive, got %v", c.Trading.FillTimeout)
	}

	if c.Trading.EvalInterval <= 0 {
		return fmt.Errorf("TRADE_EVAL_INTERVAL must be positive, got %v", c.Trading.EvalInterval)
	}

	if len(c.Trading.SettlementCurrencies) == 0 {
		return fmt.Errorf("TRADE_SETTLEMENT_CURRENCIES must not be empty")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// LoadCredentials читает API ключи из файла: три строки -
// apiKey, secret, passphrase.
func LoadCredentials(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 3 {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	if len(lines) < 3 || lines[0] == "" || lines[1] == "" || lines[2] == "" {
		return nil, fmt.Errorf("credentials file %s must contain three non-empty lines: apiKey, secret, passphrase", path)
	}

	return &Credentials{
		APIKey:     lines[0],
		Secret:     lines[1],
		Passphrase: lines[2],
	}, nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, strings.ToUpper(p))
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
