package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ludoduel/ludo-server/internal/dependencies/clock"
	"github.com/ludoduel/ludo-server/internal/dependencies/ids"
	"github.com/ludoduel/ludo-server/internal/dependencies/random"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/services/auth"
	"github.com/ludoduel/ludo-server/internal/services/chat"
	"github.com/ludoduel/ludo-server/internal/services/game"
	"github.com/ludoduel/ludo-server/internal/services/ledger"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
	"github.com/ludoduel/ludo-server/internal/services/rules"
	"github.com/ludoduel/ludo-server/internal/storage"
	"github.com/ludoduel/ludo-server/internal/storage/memory"
	"github.com/ludoduel/ludo-server/internal/storage/postgres"
	redisstorage "github.com/ludoduel/ludo-server/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	IDs    ids.Generator

	// Realtime
	HubManager *realtime.HubManager
	Notifier   realtime.Notifier
	// RedisRelay is set when events fan out through Redis; its Run loop
	// must be started by the caller
	RedisRelay *realtime.RedisNotifier

	// Services
	Rules              *rules.Engine
	Ledger             *ledger.Service
	AuthService        *auth.Service
	ChatService        *chat.Service
	MatchmakingService *matchmaking.Service
	GameController     *game.Controller

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is
	// "redis" or UseRedisNotifier is set)
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// UseRedisNotifier publishes change events on Redis Pub/Sub instead of
	// delivering them in process
	UseRedisNotifier bool

	// Service configuration. Zero values fall back to each DefaultConfig().
	AuthConfig        auth.Config
	LedgerConfig      ledger.Config
	MatchmakingConfig matchmaking.Config
	GameConfig        game.Config
	ChatConfig        chat.Config
}

// withDefaults fills zero-valued service configuration
func (c Config) withDefaults() Config {
	if c.AuthConfig.SessionDuration == 0 {
		c.AuthConfig = auth.DefaultConfig()
	}
	if c.LedgerConfig == (ledger.Config{}) {
		c.LedgerConfig = ledger.DefaultConfig()
	}
	if c.MatchmakingConfig.StaleAfter == 0 && c.MatchmakingConfig.NoOpponentTimeout == 0 {
		allowed := c.MatchmakingConfig.AllowedEntryFees
		c.MatchmakingConfig = matchmaking.DefaultConfig()
		c.MatchmakingConfig.AllowedEntryFees = allowed
	}
	if c.GameConfig == (game.Config{}) {
		c.GameConfig = game.DefaultConfig()
	}
	if c.ChatConfig == (chat.Config{}) {
		c.ChatConfig = chat.DefaultConfig()
	}
	return c
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg = cfg.withDefaults()

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	// Create storage based on type
	var store storage.Storage
	var redisClient *redis.Client
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = redisStore
		redisClient = redisStore.Client()
		closers = append(closers, redisStore)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgres.New(*cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		store = pgStore
		closers = append(closers, pgStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	hubs := realtime.NewHubManager(logger)
	var notifier realtime.Notifier = realtime.NewLocalNotifier(hubs, logger)
	var relay *realtime.RedisNotifier

	if cfg.UseRedisNotifier {
		if redisClient == nil {
			if cfg.RedisConfig == nil {
				closeAll()
				return nil, errors.New("RedisConfig required when UseRedisNotifier is set")
			}
			opts, err := redis.ParseURL(cfg.RedisConfig.URL)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			redisClient = redis.NewClient(opts)
			closers = append(closers, redisClient)
		}
		relay = realtime.NewRedisNotifier(redisClient, hubs, logger)
		notifier = relay
	}

	app := newWithDependencies(dependencies{
		store:    store,
		clock:    clock.New(),
		random:   random.New(),
		ids:      ids.New(),
		hubs:     hubs,
		notifier: notifier,
		logger:   logger,
	}, cfg)
	app.RedisRelay = relay
	app.closers = closers
	return app, nil
}

// dependencies are the externally provided pieces every App is built from
type dependencies struct {
	store    storage.Storage
	clock    clock.Clock
	random   random.Random
	ids      ids.Generator
	hubs     *realtime.HubManager
	notifier realtime.Notifier
	logger   *slog.Logger
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(deps dependencies, cfg Config) *App {
	cfg = cfg.withDefaults()

	// Create services
	engine := rules.NewStandard()
	ledgerService := ledger.New(deps.store, deps.clock, deps.logger, cfg.LedgerConfig)
	authService := auth.New(deps.store, deps.clock, deps.ids, ledgerService, deps.logger, cfg.AuthConfig)
	chatService := chat.New(deps.store, deps.notifier, deps.clock, deps.ids, deps.logger, cfg.ChatConfig)
	matchmakingService := matchmaking.New(deps.store, ledgerService, chatService, deps.notifier,
		deps.clock, deps.ids, deps.logger, cfg.MatchmakingConfig)
	gameController := game.NewController(deps.store, engine, ledgerService, chatService, deps.notifier,
		deps.clock, deps.random, deps.logger, cfg.GameConfig)

	return &App{
		Storage:            deps.store,
		Clock:              deps.clock,
		Random:             deps.random,
		IDs:                deps.ids,
		HubManager:         deps.hubs,
		Notifier:           deps.notifier,
		Rules:              engine,
		Ledger:             ledgerService,
		AuthService:        authService,
		ChatService:        chatService,
		MatchmakingService: matchmakingService,
		GameController:     gameController,
	}
}

// Close disconnects every subscriber and releases storage connections
func (a *App) Close() error {
	a.HubManager.Close()
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
