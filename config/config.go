package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	AppEnv string
	Port   string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MongoURI      string
	MongoDatabase string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string
	CSRFKey     string

	LogFile  string
	Location *time.Location

	LeaderboardDefaultLimit int
	LeaderboardMaxLimit     int
	LeaderboardCacheTTL     time.Duration
	StreakLookbackDays      int
	DefaultWorkoutPoints    int
	RebuildWorkers          int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	AdminUsername string
	AdminPassword string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")

	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "vivify")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "vivify")

	v.SetDefault("redis_enabled", true)
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")

	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("csrf_key", "")

	v.SetDefault("log_file", "./logs/app.log")
	v.SetDefault("timezone", "UTC")

	v.SetDefault("leaderboard_default_limit", 20)
	v.SetDefault("leaderboard_max_limit", 100)
	v.SetDefault("leaderboard_cache_ttl", 30*time.Second)
	v.SetDefault("streak_lookback_days", 30)
	v.SetDefault("default_workout_points", 10)
	v.SetDefault("rebuild_workers", 4)

	v.SetDefault("rate_limit_requests", 20)
	v.SetDefault("rate_limit_window", time.Minute)

	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "")
}

// Load reads configuration from the environment. A .env file at envFile is
// applied first when it exists; values already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "config: load %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config: stat %s", envFile)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "config: timezone")
	}

	cfg := &Config{
		AppEnv:     strings.ToLower(v.GetString("app_env")),
		Port:       v.GetString("port"),
		DBDriver:   strings.ToLower(v.GetString("db_driver")),
		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetString("db_port"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBName:     v.GetString("db_name"),
		DBSSLMode:  v.GetString("db_sslmode"),

		MongoURI:      v.GetString("mongo_uri"),
		MongoDatabase: v.GetString("mongo_database"),

		RedisEnabled:  v.GetBool("redis_enabled"),
		RedisHost:     v.GetString("redis_host"),
		RedisPort:     v.GetString("redis_port"),
		RedisPassword: v.GetString("redis_password"),

		JWTSecret:   v.GetString("jwt_secret"),
		JWTTTL:      v.GetDuration("jwt_ttl"),
		CORSOrigins: splitList(v.GetString("cors_origins")),
		CSRFKey:     v.GetString("csrf_key"),

		LogFile:  v.GetString("log_file"),
		Location: loc,

		LeaderboardDefaultLimit: v.GetInt("leaderboard_default_limit"),
		LeaderboardMaxLimit:     v.GetInt("leaderboard_max_limit"),
		LeaderboardCacheTTL:     v.GetDuration("leaderboard_cache_ttl"),
		StreakLookbackDays:      v.GetInt("streak_lookback_days"),
		DefaultWorkoutPoints:    v.GetInt("default_workout_points"),
		RebuildWorkers:          v.GetInt("rebuild_workers"),

		RateLimitRequests: v.GetInt("rate_limit_requests"),
		RateLimitWindow:   v.GetDuration("rate_limit_window"),

		AdminUsername: v.GetString("admin_username"),
		AdminPassword: v.GetString("admin_password"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return errors.Errorf("config: unknown db_driver %q", c.DBDriver)
	}
	if c.LeaderboardDefaultLimit <= 0 || c.LeaderboardMaxLimit <= 0 {
		return errors.New("config: leaderboard limits must be positive")
	}
	if c.LeaderboardDefaultLimit > c.LeaderboardMaxLimit {
		return errors.Errorf("config: leaderboard_default_limit %d exceeds leaderboard_max_limit %d",
			c.LeaderboardDefaultLimit, c.LeaderboardMaxLimit)
	}
	if c.StreakLookbackDays <= 0 {
		return errors.New("config: streak_lookback_days must be positive")
	}
	if c.DefaultWorkoutPoints < 0 {
		return errors.New("config: default_workout_points must not be negative")
	}
	if c.RebuildWorkers <= 0 {
		c.RebuildWorkers = 1
	}
	if c.IsProduction() && c.JWTSecret == "change-me-in-production" {
		return errors.New("config: jwt_secret must be set in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
