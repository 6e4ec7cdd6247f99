package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "FAKENEWS_SCANNER_CONFIG"

	databaseDriverEnv    = "DATABASE_DRIVER"
	databaseDSNEnv       = "DATABASE_DSN"
	httpAddrEnv          = "HTTP_ADDR"
	apiKeyEnv            = "API_KEY"
	logLevelEnv          = "LOG_LEVEL"
	hfAPIKeyEnv          = "HF_API_KEY"
	reasoningProviderEnv = "REASONING_PROVIDER"
	reasoningAPIKeyEnv   = "REASONING_API_KEY"
	reasoningModelEnv    = "REASONING_MODEL"
	redisURLEnv          = "REDIS_URL"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	slackTokenEnv        = "SLACK_BOT_TOKEN"
	slackChannelEnv      = "SLACK_CHANNEL_ID"
	sourcesEnv           = "SOURCES"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	HTTP          HTTPConfig         `yaml:"http"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Crawl         CrawlConfig        `yaml:"crawl"`
	Reddit        RedditConfig       `yaml:"reddit"`
	ML            MLConfig           `yaml:"ml"`
	Reasoning     ReasoningConfig    `yaml:"reasoning"`
	Policy        PolicyConfig       `yaml:"policy"`
	Cache         CacheConfig        `yaml:"cache"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig picks the SQL driver and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HTTPConfig configures the read API listener.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	APIKey       string        `yaml:"apiKey"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// SchedulerConfig defines when the crawler should run.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	RunOnStart     bool           `yaml:"runOnStart"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CrawlConfig bounds crawl windows and post-crawl classification.
type CrawlConfig struct {
	HistoricalMonths      int           `yaml:"historicalMonths"`
	HistoricalLimit       int           `yaml:"historicalLimit"`
	IncrementalLimit      int           `yaml:"incrementalLimit"`
	PageSize              int           `yaml:"pageSize"`
	RequestDelay          time.Duration `yaml:"requestDelay"`
	MaxAttempts           int           `yaml:"maxAttempts"`
	BackoffBase           time.Duration `yaml:"backoffBase"`
	AutoPredict           bool          `yaml:"autoPredict"`
	PredictConcurrency    int           `yaml:"predictConcurrency"`
	ReasoningInBackground bool          `yaml:"reasoningInBackground"`
}

// RedditConfig points the listing scanner at the platform.
type RedditConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// MLConfig describes the fast classifier endpoint.
type MLConfig struct {
	InferenceURL string        `yaml:"inferenceUrl"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

// ReasoningConfig defines how to contact the reasoning model. An empty
// Provider disables the second stage.
type ReasoningConfig struct {
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"maxAttempts"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
}

// PolicyConfig holds the tunable scoring thresholds.
type PolicyConfig struct {
	LowConfidence      float64    `yaml:"lowConfidence"`
	TrendDeadband      float64    `yaml:"trendDeadband"`
	CredibilityBands   [3]float64 `yaml:"credibilityBands"`
	RiskBands          [3]float64 `yaml:"riskBands"`
	MinPosts           int        `yaml:"minPosts"`
	TopCredibleMinimum int        `yaml:"topCredibleMinimum"`
	WarningMinimum     int        `yaml:"warningMinimum"`
}

// CacheConfig enables the Redis credibility cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redisUrl"`
	TTL      time.Duration `yaml:"ttl"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SlackConfig wires the bot token and target channel.
type SlackConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
	APIURL    string `yaml:"apiUrl"`
}

// SourceConfig describes one crawled community and its scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Parse decodes a YAML document over the defaults; keys absent from the
// document keep their default value.
func Parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the scoring code cannot work with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	switch c.Reasoning.Provider {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("reasoning.provider %q is not supported", c.Reasoning.Provider))
	}

	if c.Policy.LowConfidence < 0 || c.Policy.LowConfidence > 1 {
		errs = append(errs, errors.New("policy.lowConfidence must be within [0,1]"))
	}
	if c.Policy.TrendDeadband < 0 {
		errs = append(errs, errors.New("policy.trendDeadband must not be negative"))
	}
	if !descending(c.Policy.CredibilityBands) {
		errs = append(errs, errors.New("policy.credibilityBands must be strictly descending within [0,100]"))
	}
	if !ascending(c.Policy.RiskBands) {
		errs = append(errs, errors.New("policy.riskBands must be strictly ascending within [0,100]"))
	}
	if c.Policy.MinPosts < 1 {
		errs = append(errs, errors.New("policy.minPosts must be at least 1"))
	}

	for i, src := range c.Sources {
		if strings.TrimSpace(src.Name) == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		}
	}

	return errors.Join(errs...)
}

func descending(b [3]float64) bool {
	return b[0] <= 100 && b[0] > b[1] && b[1] > b[2] && b[2] >= 0
}

func ascending(b [3]float64) bool {
	return b[0] >= 0 && b[0] < b[1] && b[1] < b[2] && b[2] <= 100
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.HTTP.APIKey = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(hfAPIKeyEnv); v != "" {
		c.ML.APIKey = v
	}

	if v := os.Getenv(reasoningProviderEnv); v != "" {
		c.Reasoning.Provider = v
	}
	if v := os.Getenv(reasoningAPIKeyEnv); v != "" {
		c.Reasoning.APIKey = v
	}
	if v := os.Getenv(reasoningModelEnv); v != "" {
		c.Reasoning.Model = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Cache.RedisURL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(slackTokenEnv); v != "" {
		c.Notifications.Slack.Token = v
	}
	if v := os.Getenv(slackChannelEnv); v != "" {
		c.Notifications.Slack.ChannelID = v
	}

	if v := os.Getenv(sourcesEnv); v != "" {
		c.Sources = sourcesFromList(v)
	}
}

func sourcesFromList(list string) []SourceConfig {
	var sources []SourceConfig
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sources = append(sources, SourceConfig{Name: name, Scanner: "reddit"})
	}
	return sources
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := defaultConfig()
	cfg.bindTimezone()
	return cfg
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "fakenews.db"},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			RunOnStart:     true,
			CronExpression: "@every 30m",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Crawl: CrawlConfig{
			HistoricalMonths:   5,
			HistoricalLimit:    500,
			IncrementalLimit:   100,
			PageSize:           100,
			RequestDelay:       200 * time.Millisecond,
			MaxAttempts:        3,
			BackoffBase:        time.Second,
			AutoPredict:        true,
			PredictConcurrency: 4,
		},
		Reddit: RedditConfig{
			BaseURL:   "https://www.reddit.com",
			UserAgent: "FakeNewsScanner/1.0",
			Timeout:   30 * time.Second,
		},
		ML: MLConfig{
			InferenceURL: "https://router.huggingface.co/models",
			Model:        "hamzab/roberta-fake-news-classification",
			Timeout:      30 * time.Second,
			MaxAttempts:  3,
		},
		Reasoning: ReasoningConfig{
			Endpoint:          "https://api.deepseek.com/v1/chat/completions",
			Model:             "deepseek-chat",
			Timeout:           60 * time.Second,
			MaxAttempts:       3,
			RequestsPerMinute: 60,
		},
		Policy: PolicyConfig{
			LowConfidence:      0.6,
			TrendDeadband:      5,
			CredibilityBands:   [3]float64{80, 60, 40},
			RiskBands:          [3]float64{20, 40, 60},
			MinPosts:           5,
			TopCredibleMinimum: 10,
			WarningMinimum:     5,
		},
		Cache: CacheConfig{TTL: 10 * time.Minute},
		Sources: []SourceConfig{
			{Name: "news", Scanner: "reddit"},
			{Name: "worldnews", Scanner: "reddit"},
			{Name: "politics", Scanner: "reddit"},
			{Name: "technology", Scanner: "reddit"},
			{Name: "science", Scanner: "reddit"},
		},
	}
}
