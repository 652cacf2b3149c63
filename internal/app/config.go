package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHRONO_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL; empty selects the in-memory store" flag:"database-url"`
	FrontendURL  string `default:"http://localhost:5173" usage:"Storefront base URL for checkout redirects" flag:"frontend-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (CHRONO_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Stripe       StripeConfig
	DevKeys      DevKeysConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig configures the hosted checkout gateway client.
type StripeConfig struct {
	SecretKey string `usage:"Stripe secret key (CHRONO_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	BaseURL   string `default:"" usage:"Override for the Stripe API base URL (tests, stubs)" flag:"stripe-base-url"`
	Currency  string `default:"inr" usage:"ISO currency code for checkout sessions"`
}

// DevKeysConfig seeds API keys when running against the in-memory store.
// Only used for local development; ignored when a database URL is set.
type DevKeysConfig struct {
	UserKey  string `default:"dev-user-key" usage:"Seeded customer API key (memory store only)" flag:"dev-user-key"`
	AdminKey string `default:"dev-admin-key" usage:"Seeded admin API key (memory store only)" flag:"dev-admin-key"`
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
		EnvPrefix: "CHRONO",
		Files:     []string{"config.yaml", "/etc/chronoshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL != "" && cfg.APIKeyPepper == "" {
		return nil, errors.New("API key pepper is required: set CHRONO_API_KEY_PEPPER")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHRONO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Stripe.SecretKey == "" {
		if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
			c.Stripe.SecretKey = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.APIKeyPepper == "" && c.DatabaseURL == "" {
		c.APIKeyPepper = "dev-pepper"
	}
}
