package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"VoltX/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Log         struct {
		Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format  string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output  string `yaml:"output" default:"stdout"`
		Collect struct {
			Enabled     bool          `yaml:"enabled"`
			Topic       string        `yaml:"topic" default:"voltx.logs"`
			Interval    time.Duration `yaml:"interval" default:"30s"`
			Threshold   int           `yaml:"threshold" default:"100"`
			IncludeWarn bool          `yaml:"include_warn"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Feed struct {
		// Source selects the market data input: websocket or kafka.
		Source         string        `yaml:"source" default:"websocket" validate:"oneof=websocket kafka"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/stream"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		MaxStaleness   time.Duration `yaml:"max_staleness" default:"2m"`
		BufferSize     int           `yaml:"buffer_size" default:"2000"`
		WarmupCandles  int           `yaml:"warmup_candles" default:"240"`
	} `yaml:"feed"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"voltx.events"`
		CandlesTopic string   `yaml:"candles_topic" default:"voltx.candles"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"voltx-engine"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"voltx"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled     bool   `yaml:"enabled"`
		Host        string `yaml:"host" default:"localhost"`
		Port        int    `yaml:"port" default:"6379"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix" default:"voltx"`
		UniverseKey string `yaml:"universe_key" default:"universe:current"`
		RiskKey     string `yaml:"risk_key" default:"risk:state"`
		AlertQueue  string `yaml:"alert_queue" default:"voltx:alerts"`
	} `yaml:"redis"`
	Execution struct {
		Mode           string        `yaml:"mode" default:"paper" validate:"oneof=paper http"`
		RouterURL      string        `yaml:"router_url"`
		Timeout        time.Duration `yaml:"timeout" default:"5s"`
		Equity         float64       `yaml:"equity" default:"10000" validate:"gt=0"`
		SlippagePct    float64       `yaml:"slippage_pct" default:"0.1" validate:"gte=0"`
		FeePct         float64       `yaml:"fee_pct" default:"0.05" validate:"gte=0"`
		TickSize       float64       `yaml:"tick_size" default:"0.00000001" validate:"gt=0"`
		ExitRetryBase  time.Duration `yaml:"exit_retry_base" default:"500ms"`
		ExitRetryMax   time.Duration `yaml:"exit_retry_max" default:"10s"`
		ExitAlertAfter int           `yaml:"exit_alert_after" default:"5" validate:"gte=1"`
		ExitTolerance  float64       `yaml:"exit_tolerance_pct" default:"0.5" validate:"gt=0"`
		ToleranceDecay float64       `yaml:"tolerance_decay" default:"0.7" validate:"gt=0,lte=1"`
		ToleranceFloor float64       `yaml:"tolerance_floor_pct" default:"0.05" validate:"gte=0"`
	} `yaml:"execution"`
	Recorder struct {
		// Backend selects where closed candles are kept: clickhouse, kafka or none.
		Backend      string        `yaml:"backend" default:"none" validate:"oneof=none clickhouse kafka"`
		BatchSize    int           `yaml:"batch_size" default:"500" validate:"gt=0"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"5s"`
		CandleTable  string        `yaml:"candle_table" default:"candles"`
		JournalTable string        `yaml:"journal_table" default:"trades"`
	} `yaml:"recorder"`
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Regime   Regime   `yaml:"regime"`
	Universe struct {
		RefreshMinutes int      `yaml:"universe_refresh_minutes" default:"60" validate:"gt=0"`
		Blacklist      []string `yaml:"blacklist"`
	} `yaml:"universe"`
}

// Strategy holds the signal engine parameters.
type Strategy struct {
	BreakoutFactor   float64       `yaml:"breakout_factor" default:"0.7" validate:"gt=0"`
	TrailingStopPct  float64       `yaml:"trailing_stop_pct" default:"2.0" validate:"gt=0,lt=100"`
	HardStopPct      float64       `yaml:"hard_stop_pct" default:"1.5" validate:"gt=0,lt=100"`
	AntiChasePct     float64       `yaml:"anti_chase_pct" default:"3.0" validate:"gte=0"`
	VBSRSICeiling    float64       `yaml:"vbs_rsi_ceiling" default:"75" validate:"gt=0,lte=100"`
	VBSRSIInclusive  bool          `yaml:"vbs_rsi_inclusive"`
	VBSRequireBull   bool          `yaml:"vbs_require_bull"`
	VBSRequireVolume bool          `yaml:"vbs_require_volume"`
	DipDropRangePct  []float64     `yaml:"dip_drop_range_pct" default:"[1.5,2.5]" validate:"len=2"`
	DipRSIBand       []float64     `yaml:"dip_rsi_band" default:"[40,50]" validate:"len=2"`
	DipTakeProfitPct float64       `yaml:"dip_take_profit_pct" default:"5.0" validate:"gt=0"`
	DipStopLossPct   float64       `yaml:"dip_stop_loss_pct" default:"1.5" validate:"gt=0,lt=100"`
	DipBandTolerance float64       `yaml:"dip_band_tolerance_pct" validate:"gte=0"`
	DipTrendFilter   bool          `yaml:"dip_trend_filter"`
	DipCooldown      time.Duration `yaml:"dip_cooldown"`
	VBSBandConfirm   bool          `yaml:"vbs_band_confirm"`
	VBSBandTolerance float64       `yaml:"vbs_band_tolerance_pct" default:"0.5" validate:"gte=0,lt=100"`
	// Volume scanner. relative_volume_threshold marks a spike.
	VolumeScanner      bool          `yaml:"volume_scanner" default:"true"`
	RelVolumeThreshold float64       `yaml:"relative_volume_threshold" default:"3.0" validate:"gte=0"`
	ClimaxThreshold    float64       `yaml:"volume_climax_threshold" default:"5.0" validate:"gte=0"`
	ClimaxWickRatio    float64       `yaml:"climax_wick_ratio" default:"0.5" validate:"gte=0,lte=1"`
	ClimaxDropPct      float64       `yaml:"climax_drop_pct" default:"3.0" validate:"gte=0"`
	ExhaustionRSI      float64       `yaml:"exhaustion_rsi" default:"70" validate:"gte=0,lte=100"`
	ExhaustionCooldown time.Duration `yaml:"exhaustion_cooldown" default:"60m"`
	VolumeSpikeHold    time.Duration `yaml:"volume_spike_hold"`
	FillTimeoutSeconds int           `yaml:"fill_timeout_seconds" default:"30" validate:"gt=0"`
	TrendTimeframe     string        `yaml:"trend_timeframe" default:"3m"`
	EvalTimeframe      string        `yaml:"eval_timeframe" default:"1m"`
	EvaluateIntrabar   bool          `yaml:"evaluate_intrabar" default:"true"`
	TradingDayReset    string        `yaml:"trading_day_reset" default:"00:00"`
	TradingDayLocation string        `yaml:"trading_day_location" default:"UTC"`
}

// Risk holds sizing and circuit breaker parameters.
type Risk struct {
	LossStreak        int     `yaml:"circuit_breaker_loss_streak" default:"5" validate:"gt=0"`
	DailyLossLimitPct float64 `yaml:"daily_loss_limit_pct" default:"3.0" validate:"gt=0"`
	BasePct           float64 `yaml:"base_pct" default:"3.0" validate:"gt=0,lte=100"`
	// L2BasePct applies to universe members ranked below L1Size.
	L2BasePct      float64 `yaml:"l2_base_pct" default:"1.5" validate:"gt=0,lte=100"`
	L1Size         int     `yaml:"l1_size" default:"5" validate:"gte=0"`
	WeightDailyPnl bool    `yaml:"weight_daily_pnl"`
	MaxPositionPct float64 `yaml:"max_position_pct" default:"5.0" validate:"gt=0,lte=100"`
	MinOrderValue  float64 `yaml:"min_order_value" default:"5" validate:"gte=0"`
	QueueSize      int     `yaml:"queue_size" default:"1024" validate:"gt=0"`
	HistorySize    int     `yaml:"history_size" default:"200" validate:"gt=0"`
	Profiles       struct {
		Bull Profile `yaml:"bull"`
		Flat Profile `yaml:"flat"`
		Bear Profile `yaml:"bear"`
	} `yaml:"profiles"`
}

// Profile is a regime dependent guard/sizing set.
type Profile struct {
	SizeMultiplier float64 `yaml:"size_multiplier" validate:"gte=0"`
	DipDropMinPct  float64 `yaml:"dip_drop_min_pct" validate:"gte=0"`
	DipDropMaxPct  float64 `yaml:"dip_drop_max_pct" validate:"gte=0"`
	DipRSICeiling  float64 `yaml:"dip_rsi_ceiling" validate:"gte=0,lte=100"`
	// VBS overrides; empty takes the strategy section values.
	VBSAntiChasePct float64 `yaml:"vbs_anti_chase_pct" validate:"gte=0"`
	VBSRSICeiling   float64 `yaml:"vbs_rsi_ceiling" validate:"gte=0,lte=100"`
}

// Regime holds the classifier thresholds.
type Regime struct {
	Interval       time.Duration `yaml:"interval" default:"1m"`
	BreadthWeight  float64       `yaml:"breadth_weight" default:"0.6"`
	MomentumWeight float64       `yaml:"momentum_weight" default:"0.4"`
	MomentumScale  float64       `yaml:"momentum_scale_pct" default:"2.0" validate:"gt=0"`
	BullScore      float64       `yaml:"bull_score" default:"0.3"`
	BearScore      float64       `yaml:"bear_score" default:"-0.3"`
	MinSamples     int           `yaml:"min_samples" default:"3" validate:"gte=1"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyProfileDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("VOLTX_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		c.Kafka.EventsTopic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.Redis.DB = util.ParseIntDefault(v, c.Redis.DB)
	}
	if v := os.Getenv("RECORDER_BACKEND"); v != "" {
		c.Recorder.Backend = v
	}
	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		c.Execution.Mode = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	s := c.Strategy
	if s.DipDropRangePct[0] >= s.DipDropRangePct[1] {
		return fmt.Errorf("strategy.dip_drop_range_pct lower bound must be below upper bound")
	}
	if s.DipRSIBand[0] >= s.DipRSIBand[1] {
		return fmt.Errorf("strategy.dip_rsi_band lower bound must be below upper bound")
	}
	for _, tf := range []string{s.TrendTimeframe, s.EvalTimeframe} {
		if !validTimeframe(tf) {
			return fmt.Errorf("strategy timeframe %q not supported", tf)
		}
	}
	if _, _, err := util.ParseClock(s.TradingDayReset); err != nil {
		return fmt.Errorf("strategy.trading_day_reset: %w", err)
	}
	if _, err := time.LoadLocation(s.TradingDayLocation); err != nil {
		return fmt.Errorf("strategy.trading_day_location: %w", err)
	}
	if c.Execution.Mode == "http" && c.Execution.RouterURL == "" {
		return fmt.Errorf("execution.router_url is required for http mode")
	}
	if c.Recorder.Backend == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("recorder.backend clickhouse requires clickhouse.enabled")
	}
	if c.Recorder.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the kafka recorder")
	}
	if c.Feed.Source == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for kafka feed")
	}
	for name, p := range map[string]Profile{"bull": c.Risk.Profiles.Bull, "flat": c.Risk.Profiles.Flat, "bear": c.Risk.Profiles.Bear} {
		if p.DipDropMinPct < s.DipDropRangePct[0] || p.DipDropMaxPct > s.DipDropRangePct[1] || p.DipDropMinPct >= p.DipDropMaxPct {
			return fmt.Errorf("risk.profiles.%s drop band must sit inside strategy.dip_drop_range_pct", name)
		}
		if p.DipRSICeiling < s.DipRSIBand[0] || p.DipRSICeiling > s.DipRSIBand[1] {
			return fmt.Errorf("risk.profiles.%s rsi ceiling must sit inside strategy.dip_rsi_band", name)
		}
	}
	return nil
}

// FillTimeout returns the pending-order timeout.
func (s Strategy) FillTimeout() time.Duration {
	return time.Duration(s.FillTimeoutSeconds) * time.Second
}

// applyProfileDefaults fills profiles the YAML left empty. BULL is looser, FLAT and BEAR stricter.
func (c *Config) applyProfileDefaults() {
	s := c.Strategy
	band := s.DipDropRangePct
	rsi := s.DipRSIBand
	fill := func(p *Profile, mult, dropMin, ceiling, chase, vbsCeiling float64) {
		if p.SizeMultiplier == 0 {
			p.SizeMultiplier = mult
		}
		if p.DipDropMinPct == 0 {
			p.DipDropMinPct = dropMin
		}
		if p.DipDropMaxPct == 0 && len(band) == 2 {
			p.DipDropMaxPct = band[1]
		}
		if p.DipRSICeiling == 0 {
			p.DipRSICeiling = ceiling
		}
		if p.VBSAntiChasePct == 0 {
			p.VBSAntiChasePct = chase
		}
		if p.VBSRSICeiling == 0 {
			p.VBSRSICeiling = vbsCeiling
		}
	}
	if len(band) != 2 || len(rsi) != 2 {
		return
	}
	mid := (band[0] + band[1]) / 2
	bearCeiling := s.VBSRSICeiling - 5
	if bearCeiling <= 0 {
		bearCeiling = s.VBSRSICeiling
	}
	fill(&c.Risk.Profiles.Bull, 1.2, band[0], rsi[1], s.AntiChasePct, s.VBSRSICeiling)
	fill(&c.Risk.Profiles.Flat, 1.0, mid, rsi[1]-3, s.AntiChasePct, s.VBSRSICeiling)
	fill(&c.Risk.Profiles.Bear, 0.5, mid, rsi[0], s.AntiChasePct/2, bearCeiling)
}

func validTimeframe(tf string) bool {
	switch tf {
	case "1m", "3m", "5m", "15m", "1h", "4h", "1d":
		return true
	}
	return false
}
