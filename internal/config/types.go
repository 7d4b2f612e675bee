package config

import "time"

// Config is the full engine configuration. Every field under Endpoints,
// Chain and Strategy is required at startup; a missing value fails Load.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Store     StoreConfig     `mapstructure:"store"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	// LogPath appends logs to a file in addition to stdout when set.
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

type EndpointsConfig struct {
	// WSURLs are the streaming endpoints; one ingestion worker runs per URL.
	WSURLs []string `mapstructure:"ws_urls"`
	// RPCURLs are raced on every read request.
	RPCURLs []string `mapstructure:"rpc_urls"`
}

type ChainConfig struct {
	// LaunchpadProgram is the token-launch program whose logs are watched.
	LaunchpadProgram string `mapstructure:"launchpad_program"`
	MetadataProgram  string `mapstructure:"metadata_program"`
	// CreationMarkers are the literal log lines that flag a creation tx.
	CreationMarkers []string `mapstructure:"creation_markers"`
	Commitment      string   `mapstructure:"commitment"`
}

type DetectorConfig struct {
	DedupCacheSize int `mapstructure:"dedup_cache_size"`
	QueueSize      int `mapstructure:"queue_size"`
}

type PricingConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type StrategyConfig struct {
	// TakeProfitPct/StopLossPct are percent changes from the entry price,
	// e.g. 30 and -20.
	TakeProfitPct float64       `mapstructure:"take_profit_pct"`
	StopLossPct   float64       `mapstructure:"stop_loss_pct"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// ExitPriority orders simultaneously-true exit conditions; entries are
	// take_profit, stop_loss, timeout.
	ExitPriority []string `mapstructure:"exit_priority"`

	BuyAmountSOL    float64 `mapstructure:"buy_amount_sol"`
	MaxPriceSOL     float64 `mapstructure:"max_price_sol"`
	MinLiquiditySOL float64 `mapstructure:"min_liquidity_sol"`
	// AcceptCompleted admits assets whose curve already finished; off by
	// default since a completed curve has migrated off the launchpad.
	AcceptCompleted bool `mapstructure:"accept_completed"`
	RequireCreator  bool `mapstructure:"require_creator"`

	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	MaxSellRetries  int           `mapstructure:"max_sell_retries"`
}

type RPCConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimit is requests/second allowed per endpoint; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type StreamConfig struct {
	BackoffMin       time.Duration `mapstructure:"backoff_min"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
}

type ExecutorConfig struct {
	// Mode selects the execution backend: "stub" is the only one shipped.
	Mode        string `mapstructure:"mode"`
	IntentsPath string `mapstructure:"intents_path"`
}

type StoreConfig struct {
	DetectionsPath string `mapstructure:"detections_path"`
	// DetectionsKeep caps the rows returned to the dashboard.
	DetectionsKeep int `mapstructure:"detections_keep"`
}

type NotifierConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}
	if c.Chain.Commitment == "" {
		c.Chain.Commitment = "confirmed"
	}
	if len(c.Chain.CreationMarkers) == 0 {
		c.Chain.CreationMarkers = []string{
			"Program log: Instruction: Create",
			"Program log: Instruction: create",
		}
	}
	if c.Detector.DedupCacheSize <= 0 {
		c.Detector.DedupCacheSize = 4096
	}
	if c.Detector.QueueSize <= 0 {
		c.Detector.QueueSize = 2048
	}
	if c.Pricing.CacheSize <= 0 {
		c.Pricing.CacheSize = 512
	}
	if c.Pricing.CacheTTL <= 0 {
		c.Pricing.CacheTTL = 10 * time.Second
	}
	if len(c.Strategy.ExitPriority) == 0 {
		c.Strategy.ExitPriority = []string{"take_profit", "stop_loss", "timeout"}
	}
	if c.Strategy.MonitorInterval <= 0 {
		c.Strategy.MonitorInterval = 5 * time.Second
	}
	if c.Strategy.MaxSellRetries <= 0 {
		c.Strategy.MaxSellRetries = 5
	}
	if c.RPC.RequestTimeout <= 0 {
		c.RPC.RequestTimeout = 8 * time.Second
	}
	if c.RPC.Burst <= 0 {
		c.RPC.Burst = 4
	}
	if c.Stream.BackoffMin <= 0 {
		c.Stream.BackoffMin = 500 * time.Millisecond
	}
	if c.Stream.BackoffMax <= 0 {
		c.Stream.BackoffMax = 30 * time.Second
	}
	if c.Stream.HandshakeTimeout <= 0 {
		c.Stream.HandshakeTimeout = 10 * time.Second
	}
	if c.Stream.WriteTimeout <= 0 {
		c.Stream.WriteTimeout = 5 * time.Second
	}
	if c.Stream.PingInterval <= 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
	if c.Executor.Mode == "" {
		c.Executor.Mode = "stub"
	}
	if c.Executor.IntentsPath == "" {
		c.Executor.IntentsPath = "data/intents.db"
	}
	if c.Store.DetectionsPath == "" {
		c.Store.DetectionsPath = "data/detections.db"
	}
	if c.Store.DetectionsKeep <= 0 {
		c.Store.DetectionsKeep = 200
	}
}
