package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	SweepCron           string        // cron expression for the expiry sweep; empty → interval mode
	SweepInterval       time.Duration // fallback fixed interval (default hourly)
	SweepItemTimeout    time.Duration // per-listing budget inside one sweep
	ListingTTLDays      int           // expiry horizon assigned on create/repost
	MaxListingImages    int           // image reference cap per listing
	MaxExtendDays       int           // upper bound on one extend call
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" && viper.GetString("DATABASE_URL_TEST") != "" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	sweepInterval := viper.GetDuration("SWEEP_INTERVAL")
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	itemTimeout := viper.GetDuration("SWEEP_ITEM_TIMEOUT")
	if itemTimeout <= 0 {
		itemTimeout = 5 * time.Second
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		SweepCron:           viper.GetString("SWEEP_CRON"),
		SweepInterval:       sweepInterval,
		SweepItemTimeout:    itemTimeout,
		ListingTTLDays:      intDefault("LISTING_TTL_DAYS", 30),
		MaxListingImages:    intDefault("MAX_LISTING_IMAGES", 8),
		MaxExtendDays:       intDefault("MAX_EXTEND_DAYS", 90),
	}, nil
}

func intDefault(key string, def int) int {
	v := viper.GetInt(key)
	if v <= 0 {
		return def
	}
	return v
}
