package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	FrontendOrigin string
	LogLevel       string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	Currency              string
	GSTRate               float64

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	// Kafka (comma-separated brokers; empty disables publishing)
	KafkaBrokers        string
	KafkaConsumerGroup  string
	KafkaDLQTopic       string
	DLQRetryInterval    time.Duration
	// Upper bound on one background publish, retries included
	KafkaPublishTimeout time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	// Redis backs rate limiting; empty disables it
	RedisAddr      string
	RedisPassword  string
	RateLimit      int
	RateLimitEvery time.Duration
	// Comma-separated proxy IPs or CIDRs whose X-Forwarded-For is believed
	TrustedProxies string

	CertificateDir    string
	ProgressThreshold float64
}

var AppConfig Config

// envLocations is where LoadConfig looks for a .env file, first match wins.
var envLocations = []string{
	".env",
	"config/.env",
	"../config/.env",
	"../../config/.env",
}

// LoadConfig reads .env (if any) and the environment into AppConfig.
func LoadConfig() Config {
	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = fromEnv()
	return AppConfig
}

func fromEnv() Config {
	return Config{
		Port:           getEnvWithDefault("PORT", "8080"),
		FrontendOrigin: getEnvWithDefault("FRONTEND_ORIGIN", "*"),
		LogLevel:       getEnvWithDefault("LOG_LEVEL", "INFO"),

		DBHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnvWithDefault("DB_NAME", "triaright"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		Currency:              getEnvWithDefault("PAYMENT_CURRENCY", "INR"),
		GSTRate:               getEnvFloat("GST_RATE", 0.18),

		SMTPHost:  getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:  getEnvInt("SMTP_PORT", 587),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: os.Getenv("EMAIL_FROM"),

		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		KafkaConsumerGroup:  getEnvWithDefault("KAFKA_CONSUMER_GROUP", "triaright-platform"),
		KafkaDLQTopic:       getEnvWithDefault("KAFKA_DLQ_TOPIC", "triaright.dlq"),
		DLQRetryInterval:    getEnvDuration("DLQ_RETRY_INTERVAL", 5*time.Minute),
		KafkaPublishTimeout: getEnvDuration("KAFKA_PUBLISH_TIMEOUT", 30*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RateLimit:      getEnvInt("RATE_LIMIT", 20),
		RateLimitEvery: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),

		CertificateDir:    getEnvWithDefault("CERTIFICATE_DIR", "certificates"),
		ProgressThreshold: getEnvFloat("PROGRESS_THRESHOLD", 90),
	}
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Proxies splits TrustedProxies, dropping blanks.
func (c Config) Proxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GetDBConnString builds the lib/pq key=value DSN.
func (c Config) GetDBConnString() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
