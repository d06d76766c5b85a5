package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP         HTTPConfig
	GRPC         GRPCConfig
	MySQL        MySQLConfig
	JWT          JWTConfig
	Verification VerificationConfig
	Password     PasswordConfig
	Mail         MailConfig
	S3           S3Config
	Blacklist    BlacklistConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

type HTTPConfig struct {
	Host string
	Port string
}

// GRPCConfig.APIKeys maps a calling service name to the key it presents
// in the x-api-key metadata.
type GRPCConfig struct {
	Host    string
	Port    string
	APIKeys map[string]string
}

type MySQLConfig struct {
	DSN string
}

// JWTConfig holds the signing secret, token lifetimes and the header names
// the tokens travel in.
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AccessHeader    string
	RefreshHeader   string
}

type VerificationConfig struct {
	CodeTTL    time.Duration
	CodeLength int
	BaseURL    string
}

type PasswordConfig struct {
	Policy PasswordPolicy
}

type MailConfig struct {
	Driver       string
	From         string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type BlacklistConfig struct {
	SweepInterval time.Duration
}

type RateLimitConfig struct {
	LoginPerSecond float64
	Burst          int
}

type LogConfig struct {
	Level  string
	Format string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: GRPCConfig{
			Host:    getEnv("GRPC_HOST", "0.0.0.0"),
			Port:    getEnv("GRPC_PORT", "9090"),
			APIKeys: parseAPIKeys(os.Getenv("GRPC_API_KEYS")),
		},
		MySQL: MySQLConfig{DSN: mysqlDSN},
		JWT: JWTConfig{
			Secret:          jwtSecret,
			AccessTokenTTL:  getDurationEnv("JWT_ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL: getDurationEnv("JWT_REFRESH_TOKEN_TTL", 14*24*time.Hour),
			AccessHeader:    getEnv("JWT_ACCESS_HEADER", "Authorization"),
			RefreshHeader:   getEnv("JWT_REFRESH_HEADER", "Authorization-refresh"),
		},
		Verification: VerificationConfig{
			CodeTTL:    getDurationEnv("VERIFY_CODE_TTL", 24*time.Hour),
			CodeLength: getIntEnv("VERIFY_CODE_LENGTH", 10),
			BaseURL:    strings.TrimRight(getEnv("VERIFY_BASE_URL", "http://localhost:8080"), "/"),
		},
		Password: PasswordConfig{Policy: loadPasswordPolicy()},
		Mail: MailConfig{
			Driver:       getEnv("MAIL_DRIVER", "log"),
			From:         getEnv("MAIL_FROM", "no-reply@nengtul.local"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnv("S3_REGION", "ap-northeast-2"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		},
		Blacklist: BlacklistConfig{
			SweepInterval: getDurationEnv("BLACKLIST_SWEEP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			LoginPerSecond: getFloatEnv("LOGIN_RATE_PER_SECOND", 5),
			Burst:          getIntEnv("LOGIN_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

// DSN returns the MySQL DSN with parseTime forced on so DATETIME columns
// scan into time.Time.
func (c *Config) DSN() string {
	parsed, err := mysql.ParseDSN(c.MySQL.DSN)
	if err != nil {
		return c.MySQL.DSN
	}
	parsed.ParseTime = true
	return parsed.FormatDSN()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// parseAPIKeys reads "service=key" pairs separated by commas.
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, key, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if name == "" || key == "" {
			continue
		}
		keys[name] = key
	}
	return keys
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", true),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", true),
	}
}
