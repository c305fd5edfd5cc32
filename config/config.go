package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/tax"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Tax      TaxConfig
	Order    OrderConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type StorageConfig struct {
	Driver   string // "postgres" or "memory"
	SeedFile string // JSON fixture loaded into the memory driver at startup
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	LockTimeoutMs   int
	AutoMigrate     bool
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	StockTTL    time.Duration
	LockTTL     time.Duration
	LockRetries int
	LockBackoff time.Duration
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	ReceiptsTopic   string
	ReceiptsGroupID string
	OrdersTopic     string
}

type TaxConfig struct {
	HomeState          string
	InStateICMS        decimal.Decimal
	InterstateICMS     map[string]decimal.Decimal
	InterstateFallback decimal.Decimal
	ReducedNCM         map[string]decimal.Decimal
	PIS                decimal.Decimal
	COFINS             decimal.Decimal
	ExemptCST          []string
	PFUsesInternalRate bool
}

type OrderConfig struct {
	NumberPrefix        string
	AllowCancelInvoiced bool
}

type MetricsConfig struct {
	Port string
}

func LoadEnv() *Config {
	defaults := tax.DefaultTableConfig()

	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8083"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Storage: StorageConfig{
			Driver:   getEnv("STORAGE_DRIVER", "postgres"),
			SeedFile: getEnv("STORAGE_SEED_FILE", ""),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_sales"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			LockTimeoutMs:   getEnvInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
			AutoMigrate:     getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:     getEnvBool("REDIS_ENABLED", true),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			StockTTL:    getEnvDuration("REDIS_STOCK_TTL", 30*time.Second),
			LockTTL:     getEnvDuration("REDIS_ORDER_LOCK_TTL", 10*time.Second),
			LockRetries: getEnvInt("REDIS_ORDER_LOCK_RETRIES", 5),
			LockBackoff: getEnvDuration("REDIS_ORDER_LOCK_BACKOFF", 100*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Enabled:         getEnvBool("KAFKA_ENABLED", true),
			Brokers:         getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ReceiptsTopic:   getEnv("KAFKA_TOPIC_RECEIPTS", "inventory.receipts"),
			ReceiptsGroupID: getEnv("KAFKA_GROUP_RECEIPTS", "sales-inventory"),
			OrdersTopic:     getEnv("KAFKA_TOPIC_ORDERS", "sales.orders"),
		},
		Tax: TaxConfig{
			HomeState:          getEnv("TAX_HOME_STATE", defaults.HomeState),
			InStateICMS:        getEnvDecimal("TAX_INSTATE_ICMS", defaults.InStateICMS),
			InterstateICMS:     getEnvRates("TAX_INTERSTATE_RATES", defaults.InterstateICMS),
			InterstateFallback: getEnvDecimal("TAX_INTERSTATE_FALLBACK", defaults.InterstateFallback),
			ReducedNCM:         getEnvRates("TAX_REDUCED_NCM", defaults.ReducedNCM),
			PIS:                getEnvDecimal("TAX_PIS", defaults.PIS),
			COFINS:             getEnvDecimal("TAX_COFINS", defaults.COFINS),
			ExemptCST:          getEnvSlice("TAX_EXEMPT_CST", defaults.ExemptCST),
			PFUsesInternalRate: getEnvBool("TAX_PF_USES_INTERNAL_RATE", defaults.PFUsesInternalRate),
		},
		Order: OrderConfig{
			NumberPrefix:        getEnv("ORDER_NUMBER_PREFIX", "PV"),
			AllowCancelInvoiced: getEnvBool("ORDER_ALLOW_CANCEL_INVOICED", false),
		},
		Metrics: MetricsConfig{
			Port: getEnv("METRICS_PORT", ":9093"),
		},
	}
}

// TableConfig converts the tax settings into the input of tax.NewRateTable.
func (c TaxConfig) TableConfig() tax.TableConfig {
	return tax.TableConfig{
		HomeState:          c.HomeState,
		InStateICMS:        c.InStateICMS,
		InterstateICMS:     c.InterstateICMS,
		InterstateFallback: c.InterstateFallback,
		ReducedNCM:         c.ReducedNCM,
		PIS:                c.PIS,
		COFINS:             c.COFINS,
		ExemptCST:          c.ExemptCST,
		PFUsesInternalRate: c.PFUsesInternalRate,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return fallback
}

// getEnvRates parses "KEY:rate" pairs such as "RJ:12,MG:12". Malformed
// pairs are skipped; an unset variable yields fallback.
func getEnvRates(key string, fallback map[string]decimal.Decimal) map[string]decimal.Decimal {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	rates := map[string]decimal.Decimal{}
	for _, pair := range strings.Split(value, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		rates[strings.TrimSpace(k)] = rate
	}
	return rates
}
