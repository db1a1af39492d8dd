package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Checkout server listen address"`
	Commerce  CommerceConfig
	Redis     RedisConfig
	Razorpay  RazorpayConfig
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CommerceConfig points the order/cart client at the commerce API.
type CommerceConfig struct {
	BaseURL string        `usage:"Commerce API base URL (CHECKOUT_COMMERCE_BASE_URL)" flag:"commerce-base-url"`
	Token   string        `usage:"Commerce API bearer token" flag:"commerce-token"`
	StoreID string        `usage:"Store identifier sent with every commerce request" flag:"store-id"`
	Timeout time.Duration `default:"15s" usage:"Commerce API request timeout"`
}

// RedisConfig locates the session store.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address"`
	Username string `usage:"Redis username"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
}

// RazorpayConfig configures the hosted payment widget.
type RazorpayConfig struct {
	KeyID        string        `usage:"Razorpay public key id" flag:"razorpay-key-id"`
	MerchantName string        `default:"UniSouk" usage:"Merchant name shown in the payment widget" flag:"merchant-name"`
	ThemeColor   string        `default:"#f97316" usage:"Payment widget theme color" flag:"theme-color"`
	WaitTimeout  time.Duration `default:"10m" usage:"How long a submission waits for the widget outcome" flag:"payment-wait-timeout"`
}

// CheckoutConfig controls wizard lifecycle and order tagging.
type CheckoutConfig struct {
	SessionTTL      time.Duration `default:"24h" usage:"Session identity TTL in Redis" flag:"session-ttl"`
	WizardTTL       time.Duration `default:"2h" usage:"Idle TTL before an abandoned wizard is evicted" flag:"wizard-ttl"`
	CleanupInterval time.Duration `default:"10m" usage:"Wizard eviction sweep interval" flag:"cleanup-interval"`
	ChannelType     string        `default:"DEFAULT" usage:"Channel type tagged on created orders" flag:"channel-type"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Commerce.BaseURL == "" {
		return nil, errors.New("commerce API base URL is required: set CHECKOUT_COMMERCE_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like PORT and REDIS_URL to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Redis.Addr == "localhost:6379" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
	}
}
