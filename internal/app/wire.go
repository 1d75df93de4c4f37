package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/clapogame/clapobot/internal/blob/s3"
	memcache "github.com/clapogame/clapobot/internal/cache/memory"
	"github.com/clapogame/clapobot/internal/cache/redis"
	"github.com/clapogame/clapobot/internal/catalog"
	"github.com/clapogame/clapobot/internal/config"
	"github.com/clapogame/clapobot/internal/crypto"
	"github.com/clapogame/clapobot/internal/domain"
	"github.com/clapogame/clapobot/internal/feed"
	"github.com/clapogame/clapobot/internal/ledger/eth"
	"github.com/clapogame/clapobot/internal/match"
	"github.com/clapogame/clapobot/internal/notify"
	"github.com/clapogame/clapobot/internal/portfolio"
	"github.com/clapogame/clapobot/internal/recovery"
	"github.com/clapogame/clapobot/internal/store/postgres"
	"github.com/clapogame/clapobot/internal/vault"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Identity
	Address string

	// Core
	Ledger      domain.Ledger
	Vault       *vault.Bolt
	Sessions    domain.SessionStore
	Catalog     *catalog.Catalog
	Validator   *portfolio.Validator
	Machine     *match.Machine
	Watcher     *match.Watcher
	Scorer      *match.Scorer
	Coordinator *recovery.Coordinator

	// Prices
	PriceCache domain.PriceCache
	Feed       *feed.OracleFeed // nil when the feed is disabled

	// History and archival
	History  domain.HistoryStore // nil when postgres is disabled
	Archiver *s3blob.Archiver    // nil when archival is disabled

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger (history mode reads the database only) ---
	if mode != "history" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassphrase:    cfg.Wallet.KeyPassphrase,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}

		ethClient, err := eth.New(ctx, eth.ClientConfig{
			RPCURL:       cfg.Ledger.RPCURL,
			ChainID:      cfg.Ledger.ChainID,
			Matchmaker:   cfg.Ledger.Matchmaker,
			NFTVault:     cfg.Ledger.NFTVault,
			PrivateKey:   key,
			CallTimeout:  cfg.Ledger.CallTimeout.Duration,
			MinedTimeout: cfg.Ledger.MinedTimeout.Duration,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger: %w", err)
		}
		closers = append(closers, ethClient.Close)

		deps.Ledger = ethClient
		deps.Address = ethClient.Address()
	}

	// --- Vault ---
	boltVault, err := vault.Open(cfg.Vault.Path, cfg.Vault.Passphrase)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: vault: %w", err)
	}
	closers = append(closers, func() { _ = boltVault.Close() })
	deps.Vault = boltVault
	deps.Sessions = boltVault.Sessions()

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if strings.ToLower(cfg.Session.Backend) == "redis" {
			deps.Sessions = redis.NewSessionStore(redisClient)
		}
	}

	// --- Price cache: redis when available, otherwise in-process ---
	staleness := cfg.Game.Staleness.Duration
	if redisClient != nil {
		deps.PriceCache = redis.NewPriceCache(redisClient, staleness)
	} else {
		deps.PriceCache = memcache.NewPriceCache(staleness)
	}

	// --- Catalog and portfolio validation ---
	deps.Catalog = catalog.Default()
	deps.Validator = portfolio.NewValidator(deps.Catalog)

	// --- PostgreSQL (optional, match history) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.History = postgres.NewMatchHistoryStore(pgClient.Pool())
	}

	// --- S3 blob storage and archiver (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if cfg.Archive.Enabled && deps.History != nil {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.History, logger)
		}
	}

	// --- Oracle price feed (optional) ---
	if cfg.Feed.Enabled {
		deps.Feed = feed.NewOracleFeed(cfg.Feed.WsURL, deps.Catalog.Symbols(), deps.PriceCache, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Match orchestration ---
	if deps.Ledger != nil {
		deps.Machine = match.New(match.Config{
			Ledger:    deps.Ledger,
			Vault:     boltVault,
			Sessions:  deps.Sessions,
			Validator: deps.Validator,
			Address:   deps.Address,
			Duration:  cfg.Game.Duration.Duration,
			Logger:    logger,
		})
		deps.Watcher = match.NewWatcher(deps.Ledger, cfg.Game.PollInterval.Duration, cfg.Game.Duration.Duration, logger)
		deps.Scorer = match.NewScorer(deps.PriceCache)
		deps.Coordinator = recovery.New(recovery.Config{
			Ledger:    deps.Ledger,
			Vault:     boltVault,
			Address:   deps.Address,
			Grace:     cfg.Game.Grace.Duration,
			Staleness: cfg.Game.Staleness.Duration,
			Logger:    logger,
		})
	}

	return deps, cleanup, nil
}

// selection builds the domain selection from the portfolio config: the
// leader and co-leader symbols take their elevated roles, everything else
// plays regular.
func selection(cfg config.PortfolioConfig) domain.Selection {
	sel := domain.Selection{
		Symbols: append([]string(nil), cfg.Symbols...),
		Roles:   make([]domain.Role, len(cfg.Symbols)),
	}
	for i, sym := range cfg.Symbols {
		switch {
		case strings.EqualFold(sym, cfg.Leader):
			sel.Roles[i] = domain.RoleLeader
		case strings.EqualFold(sym, cfg.CoLeader):
			sel.Roles[i] = domain.RoleCoLeader
		default:
			sel.Roles[i] = domain.RoleRegular
		}
	}
	return sel
}

// stakeRef resolves the stake NFT reference, defaulting the contract to the
// configured stake custody contract.
func stakeRef(cfg *config.Config) domain.StakeRef {
	contract := cfg.Stake.Contract
	if contract == "" {
		contract = cfg.Ledger.NFTVault
	}
	return domain.StakeRef{
		Contract: contract,
		TokenID:  uint64(cfg.Stake.TokenID),
	}
}

// retentionCutoff converts retention days to the archive cutoff instant.
func retentionCutoff(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}
