package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendRedis = "redis"
)

type Config struct {
	Port     string `env:"PORT,      default=3000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// BaseURL is embedded in QR codes. Empty means derive it from each
	// request's scheme and Host header.
	BaseURL string `env:"BASE_URL"`
	// ExposeQRURL returns the unredacted verification URL from /start.
	ExposeQRURL bool `env:"EXPOSE_QR_URL, default=false"`

	Store StoreConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type StoreConfig struct {
	Backend    string `env:"STORE_BACKEND,     default=file"`
	DBFile     string `env:"DB_FILE,           default=db.json"`
	OutputDir  string `env:"OUTPUT_DIR,        default=output"`
	ExportFile string `env:"USERS_EXPORT_FILE, default=users.txt"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendFile, BackendMongo, BackendRedis:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LocalOnlyBaseURL reports whether BASE_URL points at a loopback or private
// address, which makes issued QR codes unusable off that network.
func (c *Config) LocalOnlyBaseURL() bool {
	if c.BaseURL == "" {
		return false
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast())
}

// Warnings lists settings that are valid but unsafe or unlikely to work
// outside a developer machine.
func (c *Config) Warnings() []string {
	var out []string
	if c.LocalOnlyBaseURL() {
		out = append(out, "BASE_URL is not reachable from other devices; scanned QR codes will not resolve")
	}
	if c.ExposeQRURL {
		out = append(out, "EXPOSE_QR_URL is enabled; /start responses carry the verification token")
	}
	return out
}
