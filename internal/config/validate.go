package config

import (
	"errors"
	"fmt"
	"math"

	"solana-pool-sniper/internal/domain"
)

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10_000

// Validate checks the configuration for values the sniper cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.RPC.HTTPEndpoint == "" {
		add("rpc.http_endpoint is required")
	}
	if c.RPC.WSEndpoint == "" {
		add("rpc.ws_endpoint is required")
	}
	if len(c.Programs) == 0 {
		add("at least one program is required")
	}
	seen := make(map[domain.ProgramKind]bool, len(c.Programs))
	for i, p := range c.Programs {
		kind, err := domain.ParseProgramKind(p.Kind)
		if err != nil {
			add("programs[%d]: %v", i, err)
			continue
		}
		if seen[kind] {
			add("programs[%d]: duplicate kind %s", i, kind)
		}
		seen[kind] = true
		if p.ProgramID == "" {
			add("programs[%d]: program_id is required", i)
		}
		if p.Opcode < 0 || p.Opcode > 255 {
			add("programs[%d]: opcode %d out of byte range", i, p.Opcode)
		}
	}

	if c.Stream.QueueSize < 1 {
		add("stream.queue_size must be positive, got %d", c.Stream.QueueSize)
	}
	if c.Stream.MaxReconnects < 0 {
		add("stream.max_reconnects must not be negative, got %d", c.Stream.MaxReconnects)
	}

	if c.Risk.MinLiquiditySOL < 0 {
		add("risk.min_liquidity_sol must not be negative")
	}

	if c.Trade.JupiterURL == "" {
		add("trade.jupiter_url is required")
	}
	if c.Trade.InputLamports == 0 {
		add("trade.input_lamports must be positive")
	}
	if c.Trade.SlippageBps < 0 || c.Trade.SlippageBps > MaxSlippageBps {
		add("trade.slippage_bps must be within [0, %d], got %d", MaxSlippageBps, c.Trade.SlippageBps)
	}
	if c.Trade.ConfirmTimeout <= 0 {
		add("trade.confirm_timeout must be positive")
	}
	if c.Trade.MaxAttempts < 1 {
		add("trade.max_attempts must be at least 1, got %d", c.Trade.MaxAttempts)
	}

	switch c.Journal.Driver {
	case JournalMemory:
	case JournalPostgres, JournalClickhouse:
		if c.Journal.DSN == "" {
			add("journal.dsn is required for driver %s", c.Journal.Driver)
		}
		if c.Journal.Driver == JournalPostgres {
			if c.Journal.MaxConns < 1 || c.Journal.MaxConns > math.MaxInt32 {
				add("journal.max_conns must be within [1, %d], got %d", math.MaxInt32, c.Journal.MaxConns)
			}
			if c.Journal.ConnectTimeout <= 0 {
				add("journal.connect_timeout must be positive")
			}
		}
	default:
		add("journal.driver %q is not one of memory, postgres, clickhouse", c.Journal.Driver)
	}

	if c.Dedup.Enabled {
		switch c.Dedup.Driver {
		case DedupMemory:
		case DedupRedis:
			if c.Dedup.RedisAddr == "" {
				add("dedup.redis_addr is required for driver redis")
			}
		default:
			add("dedup.driver %q is not one of memory, redis", c.Dedup.Driver)
		}
	}

	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		add("notify.kafka_topic is required when kafka brokers are set")
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		add("%s and %s must be set together", EnvTelegramBotToken, EnvTelegramChatID)
	}
	if c.WalletPrivateKey == "" {
		add("%s is required", EnvWalletPrivateKey)
	}

	return errors.Join(errs...)
}
