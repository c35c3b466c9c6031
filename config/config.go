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
	Server   ServerConfig
	Backend  BackendConfig
	Checkout CheckoutConfig
	ApplePay ApplePayConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	CookieSecure bool
}

// BackendConfig points at the car-wash REST backend.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CheckoutConfig struct {
	Currency      string
	PaymentType   string
	RedirectDelay time.Duration
	ResultWait    time.Duration
	FollowWait    time.Duration
	MountTTL      time.Duration
	DraftTTL      time.Duration
	QRRoute       string
	RetryRoute    string
	Billing       BillingDefaults
}

// BillingDefaults are sent with every checkout; the hosted form does not collect an address.
type BillingDefaults struct {
	Street1  string
	City     string
	State    string
	Country  string
	Postcode string
}

type ApplePayConfig struct {
	MerchantID  string
	DisplayName string
	Domain      string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicCheckout string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	LogLevel       string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cookieSecure, _ := strconv.ParseBool(getEnv("COOKIE_SECURE", "false"))

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("ENV", "development"),
			CookieSecure: cookieSecure,
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getEnv("BACKEND_BASE_URL", "https://carwash-backend-production.up.railway.app/api"), "/"),
			Timeout: getDuration("BACKEND_TIMEOUT", 15*time.Second),
		},
		Checkout: CheckoutConfig{
			Currency:      getEnv("CHECKOUT_CURRENCY", "SAR"),
			PaymentType:   getEnv("CHECKOUT_PAYMENT_TYPE", "DB"),
			RedirectDelay: getDuration("CHECKOUT_REDIRECT_DELAY", 4*time.Second),
			ResultWait:    getDuration("CHECKOUT_RESULT_WAIT", 10*time.Second),
			FollowWait:    getDuration("CHECKOUT_FOLLOW_WAIT", 30*time.Second),
			MountTTL:      getDuration("CHECKOUT_MOUNT_TTL", 15*time.Minute),
			DraftTTL:      getDuration("CHECKOUT_DRAFT_TTL", 7*24*time.Hour),
			QRRoute:       getEnv("CHECKOUT_QR_ROUTE", "/qr"),
			RetryRoute:    getEnv("CHECKOUT_RETRY_ROUTE", "/package-details"),
			Billing: BillingDefaults{
				Street1:  getEnv("BILLING_STREET", "Test Street"),
				City:     getEnv("BILLING_CITY", "Riyadh"),
				State:    getEnv("BILLING_STATE", "Riyadh"),
				Country:  getEnv("BILLING_COUNTRY", "SA"),
				Postcode: getEnv("BILLING_POSTCODE", "12345"),
			},
		},
		ApplePay: ApplePayConfig{
			MerchantID:  getEnv("APPLE_PAY_MERCHANT_ID", ""),
			DisplayName: getEnv("APPLE_PAY_DISPLAY_NAME", "PayPass Car Wash"),
			Domain:      getEnv("APPLE_PAY_DOMAIN", "localhost"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TopicCheckout: getEnv("KAFKA_TOPIC_CHECKOUT_EVENTS", "checkout-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "checkout-ledger-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
			LogLevel:       getEnv("LOG_LEVEL", ""),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, backend=%s", cfg.Server.Env, cfg.Server.Port, cfg.Backend.BaseURL)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
