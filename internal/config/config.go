// Package config loads sniper settings from YAML, the environment and .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
)

// Config holds all sniper configuration.
type Config struct {
	RPC      RPCConfig       `yaml:"rpc"`
	Programs []ProgramConfig `yaml:"programs"`
	Stream   StreamConfig    `yaml:"stream"`
	Risk     RiskConfig      `yaml:"risk"`
	Trade    TradeConfig     `yaml:"trade"`
	Journal  JournalConfig   `yaml:"journal"`
	Dedup    DedupConfig     `yaml:"dedup"`
	Notify   NotifyConfig    `yaml:"notify"`
	Log      LogConfig       `yaml:"log"`
	Metrics  MetricsConfig   `yaml:"metrics"`

	// Secrets come from the environment only.
	WalletPrivateKey string `yaml:"-"`
	TelegramBotToken string `yaml:"-"`
	TelegramChatID   string `yaml:"-"`
}

// RPCConfig locates the Solana node.
type RPCConfig struct {
	HTTPEndpoint string        `yaml:"http_endpoint"`
	WSEndpoint   string        `yaml:"ws_endpoint"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ProgramConfig is one watched pool program.
type ProgramConfig struct {
	Kind      string `yaml:"kind"` // AMM or CLMM
	ProgramID string `yaml:"program_id"`
	Opcode    int    `yaml:"opcode"`
}

// StreamConfig controls log subscriptions and the event queue.
type StreamConfig struct {
	QueueSize          int           `yaml:"queue_size"`
	MaxReconnects      int           `yaml:"max_reconnects"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// RiskConfig controls the risk gate.
type RiskConfig struct {
	MinLiquiditySOL    float64 `yaml:"min_liquidity_sol"`
	CheckHoneypot      bool    `yaml:"check_honeypot"`
	StaticLiquiditySOL float64 `yaml:"static_liquidity_sol"`
	StaticHoneypot     bool    `yaml:"static_honeypot"`
	DexScreenerURL     string  `yaml:"dexscreener_url"`
	DexScreenerRPS     float64 `yaml:"dexscreener_rps"`
}

// TradeConfig controls swap execution.
type TradeConfig struct {
	JupiterURL          string        `yaml:"jupiter_url"`
	InputLamports       uint64        `yaml:"input_lamports"`
	SlippageBps         int           `yaml:"slippage_bps"`
	PriorityFee         uint64        `yaml:"priority_fee_micro_lamports"`
	PriorityFeeEnabled  bool          `yaml:"priority_fee_enabled"`
	Simulate            bool          `yaml:"simulate"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval"`
	MaxAttempts         int           `yaml:"max_attempts"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay       time.Duration `yaml:"retry_max_delay"`
}

// Journal drivers.
const (
	JournalMemory     = "memory"
	JournalPostgres   = "postgres"
	JournalClickhouse = "clickhouse"
)

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// Postgres pool sizing.
	MaxConns       int           `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Dedup drivers.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// DedupConfig controls the optional repeat-trade guard.
type DedupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Driver        string        `yaml:"driver"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// NotifyConfig selects alert channels. Telegram is enabled by its secrets.
type NotifyConfig struct {
	TelegramBaseURL string   `yaml:"telegram_base_url"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopic      string   `yaml:"kafka_topic"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Format   string `yaml:"format"` // json or console
	Dir      string `yaml:"dir"`
	Level    string `yaml:"level"`
	Compress bool   `yaml:"compress"`
}

// MetricsConfig configures the ops HTTP server. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RPC: RPCConfig{
			HTTPEndpoint: "https://api.mainnet-beta.solana.com",
			WSEndpoint:   "wss://api.mainnet-beta.solana.com",
			Timeout:      30 * time.Second,
		},
		Programs: []ProgramConfig{
			{Kind: domain.PoolAmmKind.String(), ProgramID: discovery.RaydiumAMMV4, Opcode: int(discovery.AmmInitialize2Opcode)},
			{Kind: domain.PoolClmmKind.String(), ProgramID: discovery.RaydiumCLMM, Opcode: int(discovery.ClmmOpenPositionOpcode)},
		},
		Stream: StreamConfig{
			QueueSize:          100,
			MaxReconnects:      3,
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
		},
		Risk: RiskConfig{
			MinLiquiditySOL:    5.0,
			CheckHoneypot:      true,
			StaticLiquiditySOL: 10.0,
			DexScreenerURL:     "https://api.dexscreener.com/latest/dex",
			DexScreenerRPS:     5,
		},
		Trade: TradeConfig{
			JupiterURL:          "https://quote-api.jup.ag/v6",
			InputLamports:       10_000_000,
			SlippageBps:         500,
			PriorityFee:         1_000_000,
			PriorityFeeEnabled:  true,
			Simulate:            true,
			ConfirmTimeout:      60 * time.Second,
			ConfirmPollInterval: time.Second,
			MaxAttempts:         3,
			RetryBaseDelay:      500 * time.Millisecond,
			RetryMaxDelay:       10 * time.Second,
		},
		Journal: JournalConfig{
			Driver:         JournalMemory,
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
		},
		Dedup: DedupConfig{
			Driver: DedupMemory,
			TTL:    24 * time.Hour,
		},
		Notify: NotifyConfig{
			TelegramBaseURL: "https://api.telegram.org",
			KafkaTopic:      "sniper-alerts",
		},
		Log: LogConfig{
			Format: "console",
			Level:  "info",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty),
// then SNIPER_* overrides and secrets from the environment, and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchedPrograms converts the program list to domain values.
func (c *Config) WatchedPrograms() ([]domain.WatchedProgram, error) {
	out := make([]domain.WatchedProgram, 0, len(c.Programs))
	for _, p := range c.Programs {
		kind, err := domain.ParseProgramKind(p.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.WatchedProgram{
			ProgramID:      p.ProgramID,
			Kind:           kind,
			CreationOpcode: byte(p.Opcode),
		})
	}
	return out, nil
}

// MinLiquidity returns the liquidity threshold as a decimal.
func (r RiskConfig) MinLiquidity() decimal.Decimal {
	return decimal.NewFromFloat(r.MinLiquiditySOL)
}

// StaticLiquidity returns the placeholder liquidity as a decimal.
func (r RiskConfig) StaticLiquidity() decimal.Decimal {
	return decimal.NewFromFloat(r.StaticLiquiditySOL)
}

// EffectivePriorityFee is 0 when the priority fee is disabled.
func (t TradeConfig) EffectivePriorityFee() uint64 {
	if !t.PriorityFeeEnabled {
		return 0
	}
	return t.PriorityFee
}
