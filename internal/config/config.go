package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	StoreID                string
	DashboardTTLSeconds    int
	RefreshIntervalSeconds int
	RefreshLockTTLSeconds  int
	FetchPageSize          int
	MeterMax               float64
	RolloverThreshold      float64
	AttendantMap           map[string]string
	Timezone               string
	VarianceIncludeNonFuel bool
	ClickHouse             ClickHouseConfig
	LogLevel               string
}

type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Enabled reports whether a ClickHouse sink was configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// defaultAttendants is the tag directory the station shipped with. ATTENDANT_MAP
// replaces it entirely when set.
const defaultAttendants = "94CBA1=Molapo,56BDEF=Jose,C7DFA1=Sibu,6DC29F=Mathebe"

func Load() Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	chPort, _ := strconv.Atoi(getEnv("CLICKHOUSE_PORT", "9000"))

	cfg := Config{
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		StoreID:                getEnv("STORE_ID", "mamehlabe-garage"),
		DashboardTTLSeconds:    positiveInt("DASHBOARD_TTL_SECONDS", 300),
		RefreshIntervalSeconds: positiveInt("REFRESH_INTERVAL_SECONDS", 300),
		RefreshLockTTLSeconds:  positiveInt("REFRESH_LOCK_TTL_SECONDS", 600),
		FetchPageSize:          positiveInt("FETCH_PAGE_SIZE", 1000),
		MeterMax:               positiveFloat("METER_MAX", 100000),
		RolloverThreshold:      positiveFloat("ROLLOVER_THRESHOLD", 0.5),
		AttendantMap:           ParseAttendantMap(getEnv("ATTENDANT_MAP", defaultAttendants)),
		Timezone:               getEnv("REPORT_TIMEZONE", "Africa/Johannesburg"),
		VarianceIncludeNonFuel: parseBool(os.Getenv("VARIANCE_INCLUDE_NONFUEL")),
		ClickHouse: ClickHouseConfig{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			Port:     chPort,
			Database: getEnv("CLICKHOUSE_DATABASE", "forecourt"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate rejects configurations the process must not start with. Missing
// remote-store credentials are the only fatal condition.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.RolloverThreshold >= 1 {
		return fmt.Errorf("ROLLOVER_THRESHOLD must be below 1, got %v", c.RolloverThreshold)
	}
	return nil
}

// ParseAttendantMap reads "TAG=Name,TAG=Name". Tags are upper-cased; malformed
// pairs are skipped.
func ParseAttendantMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		tag, name, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		tag = strings.ToUpper(strings.TrimSpace(tag))
		name = strings.TrimSpace(name)
		if tag == "" || name == "" {
			continue
		}
		out[tag] = name
	}
	return out
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func positiveFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}
