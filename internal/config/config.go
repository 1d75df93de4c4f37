// Package config defines the top-level configuration for the clapo bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CLAPO_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Vault     VaultConfig     `toml:"vault"`
	Game      GameConfig      `toml:"game"`
	Stake     StakeConfig     `toml:"stake"`
	Portfolio PortfolioConfig `toml:"portfolio"`
	Join      JoinConfig      `toml:"join"`
	Recover   RecoverConfig   `toml:"recover"`
	Session   SessionConfig   `toml:"session"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Feed      FeedConfig      `toml:"feed"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the signing key material. Address is only consulted by
// modes that never sign (history); everywhere else it is derived from the
// key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassphrase    string `toml:"key_passphrase"`
	Address          string `toml:"address"`
}

// LedgerConfig holds chain endpoints and contract addresses.
type LedgerConfig struct {
	RPCURL       string   `toml:"rpc_url"`
	ChainID      int64    `toml:"chain_id"`
	Matchmaker   string   `toml:"matchmaker_address"`
	NFTVault     string   `toml:"nft_vault_address"`
	CallTimeout  duration `toml:"call_timeout"`
	MinedTimeout duration `toml:"mined_timeout"`
}

// VaultConfig holds the local secret vault parameters.
type VaultConfig struct {
	Path       string `toml:"path"`
	Passphrase string `toml:"passphrase"`
}

// GameConfig holds the protocol timing parameters. These must match the
// deployed contract; they are configuration only so testnets with shorter
// windows can be driven by the same binary.
type GameConfig struct {
	Duration     duration `toml:"duration"`
	Grace        duration `toml:"grace"`
	Staleness    duration `toml:"staleness"`
	PollInterval duration `toml:"poll_interval"`
}

// StakeConfig names the NFT to lock as stake. Contract defaults to the
// ledger's nft_vault_address when empty.
type StakeConfig struct {
	Contract string `toml:"contract"`
	TokenID  int64  `toml:"token_id"`
}

// PortfolioConfig is the portfolio to commit in create, join and auto modes.
// Leader and CoLeader must each name one of the seven symbols; the remaining
// five play the regular role.
type PortfolioConfig struct {
	Symbols  []string `toml:"symbols"`
	Leader   string   `toml:"leader"`
	CoLeader string   `toml:"co_leader"`
}

// JoinConfig selects the open match to join in join mode.
type JoinConfig struct {
	MatchID int64 `toml:"match_id"`
}

// RecoverConfig tunes recover mode. When MatchID is set the mode
// force-expires that match instead of running the standard procedures.
type RecoverConfig struct {
	MatchID int64 `toml:"match_id"`
}

// SessionConfig selects where active-match sessions live.
type SessionConfig struct {
	// Backend is "bolt" (default, shares the vault file) or "redis".
	Backend string `toml:"backend"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for match history.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds the oracle price feed parameters.
type FeedConfig struct {
	Enabled bool   `toml:"enabled"`
	WsURL   string `toml:"ws_url"`
}

// ArchiveConfig controls history archival to object storage.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML round-tripping.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "2m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCURL:       "https://testnet-rpc.monad.xyz",
			ChainID:      10143,
			CallTimeout:  duration{15 * time.Second},
			MinedTimeout: duration{90 * time.Second},
		},
		Vault: VaultConfig{
			Path: "data/clapobot.vault",
		},
		Game: GameConfig{
			Duration:     duration{120 * time.Second},
			Grace:        duration{120 * time.Second},
			Staleness:    duration{120 * time.Second},
			PollInterval: duration{2 * time.Second},
		},
		Session: SessionConfig{
			Backend: "bolt",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "clapobot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "clapobot-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"match.created", "match.joined", "match.settled", "match.expired"},
		},
		Mode:     "auto",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"create":  true,
	"join":    true,
	"auto":    true,
	"recover": true,
	"history": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: create, join, auto, recover, history)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet. Every mode except history signs transactions.
	needsWallet := strings.ToLower(c.Mode) != "history"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassphrase == "" {
			errs = append(errs, "wallet: key_passphrase is required when encrypted_key_path is set")
		}
	}

	// Ledger.
	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url is required")
	}
	if c.Ledger.ChainID == 0 {
		errs = append(errs, "ledger: chain_id is required")
	}
	if needsWallet {
		if c.Ledger.Matchmaker == "" {
			errs = append(errs, "ledger: matchmaker_address is required")
		}
		if c.Ledger.NFTVault == "" {
			errs = append(errs, "ledger: nft_vault_address is required")
		}
	}

	// Vault.
	if c.Vault.Path == "" {
		errs = append(errs, "vault: path is required")
	}

	// Game timing.
	if c.Game.Duration.Duration <= 0 {
		errs = append(errs, "game: duration must be positive")
	}
	if c.Game.Grace.Duration <= 0 {
		errs = append(errs, "game: grace must be positive")
	}
	if c.Game.Staleness.Duration <= 0 {
		errs = append(errs, "game: staleness must be positive")
	}
	if c.Game.PollInterval.Duration <= 0 {
		errs = append(errs, "game: poll_interval must be positive")
	}

	// Portfolio and stake, for the modes that commit one.
	mode := strings.ToLower(c.Mode)
	if mode == "create" || mode == "join" || mode == "auto" {
		if len(c.Portfolio.Symbols) == 0 {
			errs = append(errs, "portfolio: symbols are required for mode "+c.Mode)
		}
		if c.Portfolio.Leader == "" {
			errs = append(errs, "portfolio: leader is required for mode "+c.Mode)
		}
		if c.Portfolio.CoLeader == "" {
			errs = append(errs, "portfolio: co_leader is required for mode "+c.Mode)
		}
		if c.Stake.TokenID < 0 {
			errs = append(errs, "stake: token_id must not be negative")
		}
	}
	if mode == "join" && c.Join.MatchID <= 0 {
		errs = append(errs, "join: match_id is required for mode join")
	}

	// Session backend.
	switch strings.ToLower(c.Session.Backend) {
	case "bolt", "redis":
	default:
		errs = append(errs, fmt.Sprintf("session: unknown backend %q (valid: bolt, redis)", c.Session.Backend))
	}
	if strings.ToLower(c.Session.Backend) == "redis" && !c.Redis.Enabled {
		errs = append(errs, "session: backend redis requires redis.enabled")
	}

	// Redis.
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when enabled")
	}

	// Postgres.
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host is required when enabled")
	}

	// History mode needs somewhere to read from and a wallet to filter on.
	if mode == "history" {
		if !c.Postgres.Enabled {
			errs = append(errs, "mode history requires postgres.enabled")
		}
		if c.Wallet.Address == "" {
			errs = append(errs, "wallet: address is required for mode history")
		}
	}

	// S3 and archival.
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when enabled")
		}
	}
	if c.Archive.Enabled {
		if !c.S3.Enabled {
			errs = append(errs, "archive: requires s3.enabled")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: requires postgres.enabled")
		}
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
	}

	// Feed.
	if c.Feed.Enabled && c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
