// Package config resolves runtime configuration from the environment (and an
// optional .env file) at process start. No credential lives in code.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig
	Store StoreConfig
	Feed  FeedConfig
	SMS   SMSConfig
	Auth  AuthConfig
	OTP   OTPConfig
	Sweep SweepConfig
}

type AppConfig struct {
	ListenAddr string
	Debug      bool
	LogPath    string
}

// StoreConfig selects the document-store backend: memory, redis, postgres or
// mongo.
type StoreConfig struct {
	Backend     string
	RedisAddr   string
	PostgresURL string
	MongoURL    string
	MongoDB     string
}

// FeedConfig selects the change feed backend: memory or redis.
type FeedConfig struct {
	Backend   string
	RedisAddr string
	Stream    string
	Group     string
	Consumer  string
}

type SMSConfig struct {
	GatewayURL string
	Token      string
	Sender     string
}

type AuthConfig struct {
	JWTSecret string
}

type OTPConfig struct {
	WindowMinutes int
	Quota         int
	TTLMinutes    int
	CountryCode   string
}

type SweepConfig struct {
	CronSpec   string
	RunOnStart bool
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("STORE_BACKEND", "memory")
	viper.SetDefault("FEED_BACKEND", "memory")
	viper.SetDefault("FEED_STREAM", "changefeed:documents")
	viper.SetDefault("FEED_GROUP", "reconciler")
	viper.SetDefault("MONGO_DB", "accounts")
	viper.SetDefault("OTP_WINDOW_MINUTES", 10)
	viper.SetDefault("OTP_QUOTA", 3)
	viper.SetDefault("OTP_TTL_MINUTES", 10)
	viper.SetDefault("OTP_COUNTRY_CODE", "972")
	viper.SetDefault("SWEEP_CRON", "0 3 * * *")
	viper.SetDefault("SWEEP_RUN_ON_START", false)

	if err := viper.ReadInConfig(); err != nil {
		// The .env file is optional; plain environment variables suffice.
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !os.IsNotExist(err) {
			return nil, err
		}
	}
	viper.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			ListenAddr: viper.GetString("LISTEN_ADDR"),
			Debug:      viper.GetBool("DEBUG"),
			LogPath:    viper.GetString("LOG_PATH"),
		},
		Store: StoreConfig{
			Backend:     viper.GetString("STORE_BACKEND"),
			RedisAddr:   viper.GetString("REDIS_ADDR"),
			PostgresURL: viper.GetString("DATABASE_URL"),
			MongoURL:    viper.GetString("MONGO_URL"),
			MongoDB:     viper.GetString("MONGO_DB"),
		},
		Feed: FeedConfig{
			Backend:   viper.GetString("FEED_BACKEND"),
			RedisAddr: viper.GetString("REDIS_ADDR"),
			Stream:    viper.GetString("FEED_STREAM"),
			Group:     viper.GetString("FEED_GROUP"),
			Consumer:  viper.GetString("FEED_CONSUMER"),
		},
		SMS: SMSConfig{
			GatewayURL: viper.GetString("SMS_GATEWAY_URL"),
			Token:      viper.GetString("SMS_GATEWAY_TOKEN"),
			Sender:     viper.GetString("SMS_SENDER"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("JWT_SECRET"),
		},
		OTP: OTPConfig{
			WindowMinutes: viper.GetInt("OTP_WINDOW_MINUTES"),
			Quota:         viper.GetInt("OTP_QUOTA"),
			TTLMinutes:    viper.GetInt("OTP_TTL_MINUTES"),
			CountryCode:   viper.GetString("OTP_COUNTRY_CODE"),
		},
		Sweep: SweepConfig{
			CronSpec:   viper.GetString("SWEEP_CRON"),
			RunOnStart: viper.GetBool("SWEEP_RUN_ON_START"),
		},
	}
	if cfg.Feed.Consumer == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "accounts"
		}
		cfg.Feed.Consumer = host
	}
	return cfg, nil
}

// OTPWindow returns the configured window as a duration.
func (c OTPConfig) OTPWindow() time.Duration { return time.Duration(c.WindowMinutes) * time.Minute }

// OTPTTL returns the configured code lifetime as a duration.
func (c OTPConfig) OTPTTL() time.Duration { return time.Duration(c.TTLMinutes) * time.Minute }
