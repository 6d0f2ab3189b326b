package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, parsed once from the environment in main.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Search   SearchConfig
	Table    TableConfig
	Backends Backends
	Tracing  TracingConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
}

// RedisConfig configures the shared cache store.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	PingInterval time.Duration `env:"REDIS_PING_INTERVAL" envDefault:"2m"`
}

// SearchConfig configures the document search index and the filter/facet file.
type SearchConfig struct {
	Hosts              []string `env:"ELASTICSEARCH_HOSTS" envSeparator:"," envDefault:"http://localhost:9200"`
	Username           string   `env:"ELASTICSEARCH_USERNAME"`
	Password           string   `env:"ELASTICSEARCH_PASSWORD"`
	InsecureSkipVerify bool     `env:"ELASTICSEARCH_INSECURE" envDefault:"true"`
	ConfigPath         string   `env:"SEARCH_CONFIG_PATH" envDefault:"configs/search.yaml"`
}

// TracingConfig configures span export. Tracing is off when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"storegate"`
}

// TableConfig configures the durable merchant table.
type TableConfig struct {
	Account    string `env:"PLATFORM_STORAGE_ACCOUNT"`
	Key        string `env:"PLATFORM_STORAGE_KEY"`
	ServiceURL string `env:"PLATFORM_STORAGE_URL"`
	Name       string `env:"MERCHANT_TABLE" envDefault:"MerchantInfo"`
}

// Backends lists the upstream servers the proxy may route to.
type Backends struct {
	Default              string        `env:"NGT_SERVER"`
	OAuth                string        `env:"NGT_OAUTH_SERVER"`
	ClickAndCollect      string        `env:"NGT_CLICKANDCOLLECT_SERVER"`
	LegacyAxapta         string        `env:"NGT_OLD_AXAPTA_SERVER"`
	Polldaddy            string        `env:"POLLDADDY_SERVER"`
	Zoopit               string        `env:"ZOOPIT_SERVER"`
	Elastic              string        `env:"ELASTIC_SERVER"`
	JervPayexProxy       string        `env:"JERV_PAYEX_PROXY"`
	DefaultSource        string        `env:"DEFAULT_SOURCE"`
	RejectInvalidCert    bool          `env:"REJECT_INVALID_NGT_SSL_CERT" envDefault:"true"`
	ClickAndCollectAuthz string        `env:"CLICK_AND_COLLECT_AUTHORIZATION"`
	ProxyTimeout         time.Duration `env:"PROXY_TIMEOUT" envDefault:"50s"`
	BreakerFailures      int           `env:"CLICK_AND_COLLECT_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown      time.Duration `env:"CLICK_AND_COLLECT_BREAKER_COOLDOWN" envDefault:"30s"`
}

// EndpointURL returns the table endpoint, derived from the account when not set explicitly.
func (t TableConfig) EndpointURL() string {
	if t.ServiceURL != "" {
		return t.ServiceURL
	}
	return fmt.Sprintf("https://%s.table.core.windows.net/", t.Account)
}

// FromEnv builds the Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Backends.Elastic == "" && len(cfg.Search.Hosts) > 0 {
		cfg.Backends.Elastic = cfg.Search.Hosts[0]
	}
	return cfg, nil
}
