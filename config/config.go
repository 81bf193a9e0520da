package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the service as a named, typed field. Values
// are loaded from environment variables (optionally via a .env file) and
// validated once at startup — no free-form settings lookups at runtime.
type Config struct {
	ServerPort     string `mapstructure:"SERVER_PORT"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	NotifyExchange string `mapstructure:"NOTIFY_EXCHANGE"`
	ServiceToken   string `mapstructure:"SERVICE_TOKEN"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	TokenSigningSecret  string `mapstructure:"TOKEN_SIGNING_SECRET"`
	TokenTTLMinutes     int    `mapstructure:"TOKEN_TTL_MINUTES"`
	TokenRetentionHours int    `mapstructure:"TOKEN_RETENTION_HOURS"`

	SignupBonusDefault  int64 `mapstructure:"SIGNUP_BONUS_DEFAULT"`
	SignupBonusReferral int64 `mapstructure:"SIGNUP_BONUS_REFERRAL"`
	ReferralReward      int64 `mapstructure:"REFERRAL_REWARD"`
	ReferralDailyLimit  int   `mapstructure:"REFERRAL_DAILY_LIMIT"`

	// Government share of an event coupon's discount, percent 0..100.
	EventCouponGovernmentRatio int `mapstructure:"EVENT_COUPON_GOVERNMENT_RATIO"`

	RiskBlockThreshold int `mapstructure:"RISK_BLOCK_THRESHOLD"`
}

// TokenTTL returns the redemption token lifetime as a duration.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// TokenRetention returns how long expired unconsumed tokens are kept.
func (c Config) TokenRetention() time.Duration {
	return time.Duration(c.TokenRetentionHours) * time.Hour
}

// LoadConfig reads configuration from environment variables, with an
// optional .env file in the given path, and validates the result.
func LoadConfig(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "5300")
	viper.SetDefault("NOTIFY_EXCHANGE", "redemption_events")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("TOKEN_TTL_MINUTES", 5)
	viper.SetDefault("TOKEN_RETENTION_HOURS", 72)
	viper.SetDefault("SIGNUP_BONUS_DEFAULT", 1000)
	viper.SetDefault("SIGNUP_BONUS_REFERRAL", 3000)
	viper.SetDefault("REFERRAL_REWARD", 1000)
	viper.SetDefault("REFERRAL_DAILY_LIMIT", 5)
	viper.SetDefault("EVENT_COUPON_GOVERNMENT_RATIO", 50)
	viper.SetDefault("RISK_BLOCK_THRESHOLD", 70)

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "RABBITMQ_URL", "NOTIFY_EXCHANGE",
		"SERVICE_TOKEN", "ALLOWED_ORIGINS", "TOKEN_SIGNING_SECRET",
		"TOKEN_TTL_MINUTES", "TOKEN_RETENTION_HOURS", "SIGNUP_BONUS_DEFAULT",
		"SIGNUP_BONUS_REFERRAL", "REFERRAL_REWARD", "REFERRAL_DAILY_LIMIT",
		"EVENT_COUPON_GOVERNMENT_RATIO", "RISK_BLOCK_THRESHOLD",
	} {
		_ = viper.BindEnv(key)
	}

	// Missing .env is fine; real env vars still apply.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would silently corrupt accounting.
func (c Config) Validate() error {
	if c.TokenSigningSecret == "" {
		return fmt.Errorf("TOKEN_SIGNING_SECRET is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}
	if c.TokenRetentionHours <= 0 {
		return fmt.Errorf("TOKEN_RETENTION_HOURS must be positive, got %d", c.TokenRetentionHours)
	}
	if c.SignupBonusDefault < 0 || c.SignupBonusReferral < 0 || c.ReferralReward < 0 {
		return fmt.Errorf("bonus amounts must not be negative")
	}
	if c.ReferralDailyLimit < 1 {
		return fmt.Errorf("REFERRAL_DAILY_LIMIT must be at least 1, got %d", c.ReferralDailyLimit)
	}
	if c.EventCouponGovernmentRatio < 0 || c.EventCouponGovernmentRatio > 100 {
		return fmt.Errorf("EVENT_COUPON_GOVERNMENT_RATIO must be within 0..100, got %d", c.EventCouponGovernmentRatio)
	}
	if c.RiskBlockThreshold < 0 || c.RiskBlockThreshold > 100 {
		return fmt.Errorf("RISK_BLOCK_THRESHOLD must be within 0..100, got %d", c.RiskBlockThreshold)
	}
	return nil
}
