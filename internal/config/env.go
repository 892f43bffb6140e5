package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every non-secret override.
const EnvPrefix = "SNIPER_"

// Secret environment variables.
const (
	EnvWalletPrivateKey = "WALLET_PRIVATE_KEY"
	EnvTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
)

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment values onto cfg. Unset variables leave
// the current value untouched; malformed values are errors.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("RPC_HTTP_ENDPOINT", &cfg.RPC.HTTPEndpoint)
	e.str("RPC_WS_ENDPOINT", &cfg.RPC.WSEndpoint)
	e.duration("RPC_TIMEOUT", &cfg.RPC.Timeout)

	e.int("STREAM_QUEUE_SIZE", &cfg.Stream.QueueSize)
	e.int("STREAM_MAX_RECONNECTS", &cfg.Stream.MaxReconnects)

	e.float("RISK_MIN_LIQUIDITY_SOL", &cfg.Risk.MinLiquiditySOL)
	e.bool("RISK_CHECK_HONEYPOT", &cfg.Risk.CheckHoneypot)
	e.float("RISK_STATIC_LIQUIDITY_SOL", &cfg.Risk.StaticLiquiditySOL)
	e.str("RISK_DEXSCREENER_URL", &cfg.Risk.DexScreenerURL)

	e.str("TRADE_JUPITER_URL", &cfg.Trade.JupiterURL)
	e.uint64("TRADE_INPUT_LAMPORTS", &cfg.Trade.InputLamports)
	e.int("TRADE_SLIPPAGE_BPS", &cfg.Trade.SlippageBps)
	e.uint64("TRADE_PRIORITY_FEE", &cfg.Trade.PriorityFee)
	e.bool("TRADE_PRIORITY_FEE_ENABLED", &cfg.Trade.PriorityFeeEnabled)
	e.bool("TRADE_SIMULATE", &cfg.Trade.Simulate)
	e.duration("TRADE_CONFIRM_TIMEOUT", &cfg.Trade.ConfirmTimeout)
	e.int("TRADE_MAX_ATTEMPTS", &cfg.Trade.MaxAttempts)

	e.str("JOURNAL_DRIVER", &cfg.Journal.Driver)
	e.str("JOURNAL_DSN", &cfg.Journal.DSN)
	e.int("JOURNAL_MAX_CONNS", &cfg.Journal.MaxConns)
	e.duration("JOURNAL_CONNECT_TIMEOUT", &cfg.Journal.ConnectTimeout)

	e.bool("DEDUP_ENABLED", &cfg.Dedup.Enabled)
	e.str("DEDUP_DRIVER", &cfg.Dedup.Driver)
	e.duration("DEDUP_TTL", &cfg.Dedup.TTL)
	e.str("DEDUP_REDIS_ADDR", &cfg.Dedup.RedisAddr)
	e.str("DEDUP_REDIS_PASSWORD", &cfg.Dedup.RedisPassword)
	e.int("DEDUP_REDIS_DB", &cfg.Dedup.RedisDB)

	e.list("NOTIFY_KAFKA_BROKERS", &cfg.Notify.KafkaBrokers)
	e.str("NOTIFY_KAFKA_TOPIC", &cfg.Notify.KafkaTopic)

	e.str("LOG_FORMAT", &cfg.Log.Format)
	e.str("LOG_DIR", &cfg.Log.Dir)
	e.str("LOG_LEVEL", &cfg.Log.Level)

	e.str("METRICS_ADDR", &cfg.Metrics.Addr)

	if v, ok := lookup(EnvWalletPrivateKey); ok {
		cfg.WalletPrivateKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramBotToken); ok {
		cfg.TelegramBotToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramChatID); ok {
		cfg.TelegramChatID = strings.TrimSpace(v)
	}

	return e.err
}

// envReader keeps the first parse error so call sites stay flat.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, v string, err error) {
	e.err = fmt.Errorf("env %s%s=%q: %w", EnvPrefix, key, v, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) uint64(key string, dst *uint64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

// list splits a comma-separated value, dropping empty items.
func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
