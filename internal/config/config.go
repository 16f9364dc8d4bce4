package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	pkgconfig "github.com/wekeepgrowing/billing-identity/pkg/config"
	"github.com/wekeepgrowing/billing-identity/pkg/logger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "BILLING"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	Plans    PlansConfig    `yaml:"plans"`
	Audit    AuditConfig    `yaml:"audit"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (default ./configs/billing.yaml),
// overlays BILLING_* environment variables and applies defaults.
// A .env file in the working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/billing.yaml"
	}

	cfg, err := loadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv(pkgconfig.FromEnv(EnvPrefix))
	cfg.applyDefaults()

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overlays secrets and deployment specific values from the environment.
func (c *Config) applyEnv(env pkgconfig.Config) {
	pkgconfig.Bind(env,
		pkgconfig.Binding{Key: "service.environment", Target: &c.Service.Environment},
		pkgconfig.Binding{Key: "service.client_url", Target: &c.Service.ClientURL},
		pkgconfig.Binding{Key: "service.stripe_secret_key", Target: &c.Service.StripeSecretKey},
		pkgconfig.Binding{Key: "service.stripe_webhook_secret", Target: &c.Service.StripeWebhookSecret},
		pkgconfig.Binding{Key: "service.admin_api_key", Target: &c.Service.AdminAPIKey},
		pkgconfig.Binding{Key: "service.supabase.jwt_secret", Target: &c.Service.Supabase.JWTSecret},
		pkgconfig.Binding{Key: "service.supabase.project_url", Target: &c.Service.Supabase.ProjectURL},
		pkgconfig.Binding{Key: "service.supabase.api_key", Target: &c.Service.Supabase.APIKey},
		pkgconfig.Binding{Key: "database.host", Target: &c.Database.Host},
		pkgconfig.Binding{Key: "database.port", Target: &c.Database.Port},
		pkgconfig.Binding{Key: "database.name", Target: &c.Database.Name},
		pkgconfig.Binding{Key: "database.user", Target: &c.Database.User},
		pkgconfig.Binding{Key: "database.password", Target: &c.Database.Password},
		pkgconfig.Binding{Key: "mapping.backend", Target: &c.Mapping.Backend},
		pkgconfig.Binding{Key: "redis.enabled", Target: &c.Redis.Enabled},
		pkgconfig.Binding{Key: "redis.addr", Target: &c.Redis.Addr},
		pkgconfig.Binding{Key: "redis.password", Target: &c.Redis.Password},
		pkgconfig.Binding{Key: "server.http.port", Target: &c.Server.HTTP.Port},
		pkgconfig.Binding{Key: "server.grpc.port", Target: &c.Server.GRPC.Port},
		pkgconfig.Binding{Key: "log.level", Target: &c.Log.Level},
	)
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "billing-identity"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	if c.Service.DefaultDonationCurrency == "" {
		c.Service.DefaultDonationCurrency = "thb"
	}
	if c.Service.Supabase.MappingTable == "" {
		c.Service.Supabase.MappingTable = "user_stripe_mapping"
	}
	if c.Mapping.Backend == "" {
		c.Mapping.Backend = MappingBackendPostgres
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 30 * time.Second
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Redis.LockWait == 0 {
		c.Redis.LockWait = 10 * time.Second
	}
	if c.Redis.EventsChannel == "" {
		c.Redis.EventsChannel = "billing.customer_mapping"
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Plans.CacheTTL == 0 {
		c.Plans.CacheTTL = 5 * time.Minute
	}
	if len(c.Plans.ExcludeNameContains) == 0 {
		c.Plans.ExcludeNameContains = []string{"test"}
	}
	if c.Plans.PopularNameContains == "" {
		c.Plans.PopularNameContains = "pro"
	}
	if c.Audit.PageLimit == 0 {
		c.Audit.PageLimit = 100
	}
	if c.Audit.Concurrency == 0 {
		c.Audit.Concurrency = 4
	}
	c.Log.Service = c.Service.Name
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var problems []string
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}

	require(c.Service.StripeSecretKey, "service.stripe_secret_key")
	require(c.Service.StripeWebhookSecret, "service.stripe_webhook_secret")
	require(c.Service.ClientURL, "service.client_url")
	require(c.Service.Supabase.JWTSecret, "service.supabase.jwt_secret")

	switch c.Mapping.Backend {
	case MappingBackendPostgres:
		require(c.Database.Host, "database.host")
		require(c.Database.Name, "database.name")
	case MappingBackendSupabase:
		require(c.Service.Supabase.ProjectURL, "service.supabase.project_url")
		require(c.Service.Supabase.APIKey, "service.supabase.api_key")
	default:
		problems = append(problems, fmt.Sprintf("mapping.backend %q is not one of postgres, supabase", c.Mapping.Backend))
	}

	if c.Redis.Enabled {
		require(c.Redis.Addr, "redis.addr")
	}
	if c.Audit.PageLimit < 1 || c.Audit.PageLimit > 100 {
		problems = append(problems, "audit.page_limit must be between 1 and 100")
	}
	if _, err := c.Plans.FallbackPlans(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
