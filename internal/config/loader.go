package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CLAPO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CLAPO_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "CLAPO_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "CLAPO_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassphrase, "CLAPO_WALLET_KEY_PASSPHRASE")
	setStr(&cfg.Wallet.Address, "CLAPO_WALLET_ADDRESS")

	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "CLAPO_LEDGER_RPC_URL")
	setInt64(&cfg.Ledger.ChainID, "CLAPO_LEDGER_CHAIN_ID")
	setStr(&cfg.Ledger.Matchmaker, "CLAPO_LEDGER_MATCHMAKER_ADDRESS")
	setStr(&cfg.Ledger.NFTVault, "CLAPO_LEDGER_NFT_VAULT_ADDRESS")
	setDuration(&cfg.Ledger.CallTimeout, "CLAPO_LEDGER_CALL_TIMEOUT")
	setDuration(&cfg.Ledger.MinedTimeout, "CLAPO_LEDGER_MINED_TIMEOUT")

	// ── Vault ──
	setStr(&cfg.Vault.Path, "CLAPO_VAULT_PATH")
	setStr(&cfg.Vault.Passphrase, "CLAPO_VAULT_PASSPHRASE")

	// ── Game ──
	setDuration(&cfg.Game.Duration, "CLAPO_GAME_DURATION")
	setDuration(&cfg.Game.Grace, "CLAPO_GAME_GRACE")
	setDuration(&cfg.Game.Staleness, "CLAPO_GAME_STALENESS")
	setDuration(&cfg.Game.PollInterval, "CLAPO_GAME_POLL_INTERVAL")

	// ── Stake / portfolio ──
	setStr(&cfg.Stake.Contract, "CLAPO_STAKE_CONTRACT")
	setInt64(&cfg.Stake.TokenID, "CLAPO_STAKE_TOKEN_ID")
	setStringSlice(&cfg.Portfolio.Symbols, "CLAPO_PORTFOLIO_SYMBOLS")
	setStr(&cfg.Portfolio.Leader, "CLAPO_PORTFOLIO_LEADER")
	setStr(&cfg.Portfolio.CoLeader, "CLAPO_PORTFOLIO_CO_LEADER")
	setInt64(&cfg.Join.MatchID, "CLAPO_JOIN_MATCH_ID")
	setInt64(&cfg.Recover.MatchID, "CLAPO_RECOVER_MATCH_ID")

	// ── Session ──
	setStr(&cfg.Session.Backend, "CLAPO_SESSION_BACKEND")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CLAPO_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CLAPO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CLAPO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CLAPO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CLAPO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CLAPO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CLAPO_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CLAPO_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CLAPO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CLAPO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CLAPO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CLAPO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CLAPO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CLAPO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CLAPO_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CLAPO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CLAPO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CLAPO_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CLAPO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CLAPO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CLAPO_S3_REGION")
	setStr(&cfg.S3.Bucket, "CLAPO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CLAPO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CLAPO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CLAPO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CLAPO_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "CLAPO_FEED_ENABLED")
	setStr(&cfg.Feed.WsURL, "CLAPO_FEED_WS_URL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "CLAPO_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "CLAPO_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CLAPO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CLAPO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CLAPO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CLAPO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CLAPO_MODE")
	setStr(&cfg.LogLevel, "CLAPO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
