package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDynamo = "dynamo"
	StoreMongo  = "mongo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	StoreDriver    string
	MongoURI       string
	MongoDatabase  string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	UsersTable     string
	S3BucketName   string // empty disables avatar and cover image uploads

	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	RefreshTokenExpiry time.Duration
	CookieSecure       bool

	OTPTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SMTPTimeout  time.Duration

	AllowedOrigins []string // CORS allowed origins

	// Peers allowed to set X-Forwarded-For. Empty means the connection
	// address is always used for rate limiting.
	TrustedProxies []netip.Prefix

	errs []error
}

// Load reads all configuration from environment variables. Malformed values
// are collected and reported by Validate.
func Load() *Config {
	c := &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDynamo)),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "accounts"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UsersTable:     getEnv("DYNAMO_TABLE_USERS", "users"),
		S3BucketName:   getEnv("S3_BUCKET_NAME", ""),

		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: splitList(getEnv("CORS_ORIGIN", "*")),
	}
	c.AccessTokenExpiry = c.duration("ACCESS_TOKEN_EXPIRY", "7d")
	c.RefreshTokenExpiry = c.duration("REFRESH_TOKEN_EXPIRY", "30d")
	c.OTPTTL = c.duration("OTP_TTL", "5m")
	c.SMTPTimeout = c.duration("SMTP_TIMEOUT", "10s")
	c.TrustedProxies = c.prefixes("TRUSTED_PROXIES")
	return c
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)
	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_EXPIRY":  c.AccessTokenExpiry,
		"REFRESH_TOKEN_EXPIRY": c.RefreshTokenExpiry,
		"OTP_TTL":              c.OTPTTL,
		"SMTP_TIMEOUT":         c.SMTPTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	switch c.StoreDriver {
	case StoreDynamo:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether APP_ENV selects the development profile.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) duration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := ParseDuration(raw)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

func (c *Config) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range splitList(getEnv(key, "")) {
		p, err := ParsePrefix(raw)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParsePrefix accepts a CIDR block or a single address, which becomes a
// host-sized prefix.
func ParsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid prefix %q", s)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address %q", s)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ParseDuration accepts Go duration strings plus a whole-day form such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
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
