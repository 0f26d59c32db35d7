package model

import "time"

// Config holds the complete surveyfill configuration.
// Field tags serve both viper (mapstructure) and config show/init (yaml).
type Config struct {
	Keywords     KeywordConfig      `mapstructure:"keywords" yaml:"keywords"`
	Resolve      ResolveConfig      `mapstructure:"resolve" yaml:"resolve"`
	HTTP         HTTPConfig         `mapstructure:"http" yaml:"http"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `mapstructure:"concurrency" yaml:"concurrency"`
	Browser      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
}

// KeywordRule is a weighted text pattern.
type KeywordRule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Weight  int    `mapstructure:"weight" yaml:"weight" json:"weight"`
}

// KeywordConfig holds the option scoring tables
type KeywordConfig struct {
	Positive       []KeywordRule `mapstructure:"positive" yaml:"positive"`
	Negative       []string      `mapstructure:"negative" yaml:"negative"`
	Intensity      []string      `mapstructure:"intensity" yaml:"intensity"`
	IntensityBonus int           `mapstructure:"intensity_bonus" yaml:"intensity_bonus"`
}

// ResolveConfig controls how option text is located in static HTML
type ResolveConfig struct {
	Strategies  []string `mapstructure:"strategies" yaml:"strategies"`
	AnswerClass string   `mapstructure:"answer_class" yaml:"answer_class"`
}

// HTTPConfig holds page fetching settings
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	InsecureTLS   bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	HTTPProxy     string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy    string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy       string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// CacheConfig holds fetched page cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// RateLimitingConfig holds per-domain request limits
type RateLimitingConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// ConcurrencyConfig holds batch worker settings
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// BrowserConfig holds live browser session settings
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Bin               string        `mapstructure:"bin" yaml:"bin,omitempty"`
	DebuggerURL       string        `mapstructure:"debugger_url" yaml:"debugger_url,omitempty"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	Debounce          time.Duration `mapstructure:"debounce" yaml:"debounce"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	BannerDuration    time.Duration `mapstructure:"banner_duration" yaml:"banner_duration"`
	ManualButton      bool          `mapstructure:"manual_button" yaml:"manual_button"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// OutputConfig holds report rendering settings
type OutputConfig struct {
	Verbose       bool `mapstructure:"verbose" yaml:"verbose"`
	IncludeFooter bool `mapstructure:"include_footer" yaml:"include_footer"`
}

// LLMConfig holds keyword suggestion settings. The API key is never written to disk.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	Model     string        `mapstructure:"model" yaml:"model"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey    string        `mapstructure:"api_key" yaml:"-"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DefaultKeywords returns the built-in scoring tables
func DefaultKeywords() KeywordConfig {
	return KeywordConfig{
		Positive: []KeywordRule{
			{Pattern: "very satisfied", Weight: 100},
			{Pattern: "sangat puas", Weight: 100},
			{Pattern: "strongly agree", Weight: 100},
			{Pattern: "sangat setuju", Weight: 100},
			{Pattern: "satisfied", Weight: 90},
			{Pattern: "puas", Weight: 90},
			{Pattern: "agree", Weight: 90},
			{Pattern: "setuju", Weight: 90},
			{Pattern: "yes", Weight: 80},
			{Pattern: "ya", Weight: 80},
		},
		Negative: []string{
			"no", "tidak", "never",
			"dissatisfied", "tidak puas",
			"disagree", "tidak setuju",
			"very dissatisfied", "sangat tidak puas",
			"strongly disagree", "sangat tidak setuju",
		},
		Intensity:      []string{"very", "sangat"},
		IntensityBonus: 5,
	}
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() *Config {
	return &Config{
		Keywords: DefaultKeywords(),
		Resolve: ResolveConfig{
			Strategies:  []string{"answer-list", "sibling", "container", "label-for"},
			AnswerClass: "answerlist1",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "surveyfill/0.3 (+https://github.com/ppiankov/surveyfill)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".surveyfill-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Browser: BrowserConfig{
			Headless:          false,
			NavigationTimeout: 30 * time.Second,
			InitialDelay:      1500 * time.Millisecond,
			Debounce:          500 * time.Millisecond,
			PollInterval:      250 * time.Millisecond,
			BannerDuration:    5 * time.Second,
			ManualButton:      true,
		},
		Server: ServerConfig{
			Addr: ":8088",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			Timeout:   30 * time.Second,
			MaxTokens: 800,
		},
	}
}
