package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	HTTPAddr string
	BaseURL  string
	LogLevel string

	RedisURL string

	KafkaBrokers       []string
	KafkaIssuanceTopic string

	MetricsUser     string
	MetricsPassword string

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies - адреса/подсети прокси, которым верим в X-Forwarded-For.
	TrustedProxies []string

	SnowflakeDatacenterID int64
	SnowflakeMachineID    int64
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Msg(".env file not found")
	}

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 10),

		HTTPAddr: getString("HTTP_ADDR", ":8080"),
		BaseURL:  strings.TrimRight(getString("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel: getString("LOG_LEVEL", "info"),

		RedisURL: os.Getenv("REDIS_URL"),

		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaIssuanceTopic: getString("KAFKA_ISSUANCE_TOPIC", "coupon.issued"),

		MetricsUser:     os.Getenv("METRICS_USER"),
		MetricsPassword: os.Getenv("METRICS_PASSWORD"),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 100),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),

		SnowflakeDatacenterID: int64(getInt("SNOWFLAKE_DATACENTER_ID", 1)),
		SnowflakeMachineID:    int64(getInt("SNOWFLAKE_MACHINE_ID", 1)),
	}

	return cfg
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, using default")
		return def
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
