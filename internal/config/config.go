package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	OverlapReject = "reject"
	OverlapAllow  = "allow"
)

type Config struct {
	Port                      string        `mapstructure:"PORT"`
	Env                       string        `mapstructure:"ENV"`
	DatabaseURL               string        `mapstructure:"DATABASE_URL"`
	DBMaxConns                int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns                int32         `mapstructure:"DB_MIN_CONNS"`
	SupabaseURL               string        `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey        string        `mapstructure:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret         string        `mapstructure:"SUPABASE_JWT_SECRET"`
	AuthJWKSURL               string        `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer                string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience              string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins               []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS              float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst            int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout            time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BookingDefaultStatus      string        `mapstructure:"BOOKING_DEFAULT_STATUS"`
	AvailabilityOverlapPolicy string        `mapstructure:"AVAILABILITY_OVERLAP_POLICY"`
	ClinicTimezone            string        `mapstructure:"CLINIC_TIMEZONE"`
	MetricsEnabled            bool          `mapstructure:"METRICS_ENABLED"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "SUPABASE_JWT_SECRET",
	"AUTH_JWKS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"BOOKING_DEFAULT_STATUS", "AVAILABILITY_OVERLAP_POLICY",
	"CLINIC_TIMEZONE", "METRICS_ENABLED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BOOKING_DEFAULT_STATUS", "pending")
	v.SetDefault("AVAILABILITY_OVERLAP_POLICY", OverlapReject)
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("METRICS_ENABLED", true)

	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves ClinicTimezone, the zone "today" is computed in when
// rejecting bookings for past dates.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ClinicTimezone)
}

// Warnings lists settings that are allowed but risky.
func (c *Config) Warnings() []string {
	if !c.IsDev() {
		return nil
	}
	w := []string{"ENV=development, unauthenticated requests are treated as admin."}
	if !localDatabase(c.DatabaseURL) {
		w = append(w, fmt.Sprintf("ENV=development with non-local database host %q; set ENV=production for deployed instances.",
			databaseHost(c.DatabaseURL)))
	}
	return w
}

func databaseHost(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func localDatabase(dsn string) bool {
	host := databaseHost(dsn)
	switch host {
	case "", "localhost", "host.docker.internal":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source and the Supabase profile lookup are mandatory.
func (c *Config) Validate() error {
	for _, w := range c.Warnings() {
		log.Println("WARNING: " + w)
	}

	if !c.IsDev() {
		if c.SupabaseJWTSecret == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("SUPABASE_JWT_SECRET or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
		}
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when ENV=%q", c.Env)
		}
	}

	switch c.BookingDefaultStatus {
	case "pending", "confirmed":
	default:
		return fmt.Errorf("BOOKING_DEFAULT_STATUS must be \"pending\" or \"confirmed\", got %q", c.BookingDefaultStatus)
	}

	switch c.AvailabilityOverlapPolicy {
	case OverlapReject, OverlapAllow:
	default:
		return fmt.Errorf("AVAILABILITY_OVERLAP_POLICY must be %q or %q, got %q",
			OverlapReject, OverlapAllow, c.AvailabilityOverlapPolicy)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}

	return nil
}
