package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers understood by the store factory.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
}

// Production reports whether the service runs with the production profile.
func (g GeneralConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(g.Environment), "production")
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AllowedOrigins returns the CORS allow-list. An unset frontend URL disables
// CORS entirely.
func (s ServerConfig) AllowedOrigins() []string {
	if u := strings.TrimSpace(s.FrontendURL); u != "" {
		return []string{u}
	}
	return []string{}
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return errors.New("llm.api_key required (GROQ_API_KEY)")
	}
	if strings.TrimSpace(l.BaseURL) == "" {
		return errors.New("llm.base_url required")
	}
	if l.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be > 0")
	}
	return nil
}

// SourcesConfig contains search source configurations
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

// WebSearchConfig contains web search settings. Providers are tried in order;
// a provider without a credential is skipped.
type WebSearchConfig struct {
	Providers    []string      `mapstructure:"providers"`
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ScraperConfig selects how pages are fetched and reduced to text.
type ScraperConfig struct {
	Fetcher   string        `mapstructure:"fetcher"`
	Extractor string        `mapstructure:"extractor"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

func (s ScraperConfig) Validate() error {
	switch s.Fetcher {
	case "http", "chromedp":
	default:
		return fmt.Errorf("scraper.fetcher must be http or chromedp, got %q", s.Fetcher)
	}
	switch s.Extractor {
	case "strip", "readability":
	default:
		return fmt.Errorf("scraper.extractor must be strip or readability, got %q", s.Extractor)
	}
	if s.Timeout <= 0 {
		return errors.New("scraper.timeout must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	var err error
	switch s.Driver {
	case DriverMongo:
		err = s.Mongo.Validate()
	case DriverPostgres:
		err = s.Postgres.Validate()
	case DriverMemory:
	default:
		err = fmt.Errorf("storage.driver must be one of mongo, postgres, memory; got %q", s.Driver)
	}
	if err != nil {
		return err
	}
	if s.Redis.Enabled {
		return s.Redis.Validate()
	}
	return nil
}

// MongoConfig contains MongoDB connection settings
type MongoConfig struct {
	URL      string        `mapstructure:"url"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (m MongoConfig) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return errors.New("storage.mongo.url required (MONGODB_URL)")
	}
	if strings.TrimSpace(m.Database) == "" {
		return errors.New("storage.mongo.database required (DATABASE_NAME)")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string, preferring an explicit url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains settings for the report cache
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// TelemetryConfig toggles the Prometheus endpoint.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// legacyEnv maps the flat environment variables of the original deployment
// onto config keys.
var legacyEnv = map[string]string{
	"llm.api_key":                       "GROQ_API_KEY",
	"sources.web_search.tavily_api_key": "TAVILY_API_KEY",
	"sources.web_search.brave_api_key":  "BRAVE_API_KEY",
	"sources.web_search.serper_api_key": "SERPER_API_KEY",
	"storage.mongo.url":                 "MONGODB_URL",
	"storage.mongo.database":            "DATABASE_NAME",
	"storage.postgres.url":              "DATABASE_URL",
	"general.environment":               "ENVIRONMENT",
	"general.log_level":                 "LOG_LEVEL",
	"server.frontend_url":               "FRONTEND_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.environment", "development")
	v.SetDefault("general.log_level", "INFO")
	v.SetDefault("general.log_file", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.frontend_url", "")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_retries", 0)

	v.SetDefault("sources.web_search.providers", []string{"tavily", "duckduckgo"})
	v.SetDefault("sources.web_search.tavily_api_key", "")
	v.SetDefault("sources.web_search.brave_api_key", "")
	v.SetDefault("sources.web_search.serper_api_key", "")
	v.SetDefault("sources.web_search.timeout", 20*time.Second)

	v.SetDefault("scraper.fetcher", "http")
	v.SetDefault("scraper.extractor", "strip")
	v.SetDefault("scraper.timeout", 10*time.Second)
	v.SetDefault("scraper.max_chars", 5000)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (compatible; ResearchFlow/1.0)")

	v.SetDefault("storage.driver", DriverMongo)
	v.SetDefault("storage.mongo.url", "")
	v.SetDefault("storage.mongo.database", "researchflow")
	v.SetDefault("storage.mongo.timeout", 10*time.Second)
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 10*time.Second)
	v.SetDefault("storage.redis.enabled", false)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.ttl", 24*time.Hour)

	v.SetDefault("telemetry.enabled", true)
}

// LoadConfig loads config from an optional file and the environment.
// RESEARCHFLOW_* variables override everything; the original flat variables
// (GROQ_API_KEY, MONGODB_URL, ...) are honoured as well.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "RESEARCHFLOW_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Sources.WebSearch.Providers = normalizeProviders(cfg.Sources.WebSearch.Providers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section that has constraints.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Scraper.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if len(c.Sources.WebSearch.Providers) == 0 {
		return errors.New("sources.web_search.providers must name at least one provider")
	}
	return nil
}

// normalizeProviders accepts both list values and a comma separated string
// coming from the environment.
func normalizeProviders(in []string) []string {
	var out []string
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
