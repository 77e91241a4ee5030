package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/dependencies/random"
	"github.com/francismars/live/internal/gateway"
	"github.com/francismars/live/internal/services/match"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/scheduler"
	"github.com/francismars/live/internal/services/sim"
	"github.com/francismars/live/internal/services/stats"
	"github.com/francismars/live/internal/storage"
	"github.com/francismars/live/internal/storage/memory"
	redisstorage "github.com/francismars/live/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Simulator *sim.Service
	Registry  *room.Registry
	Queue     *match.Queue
	Ledger    *stats.Ledger
	Scheduler *scheduler.Scheduler
	Hub       *gateway.Hub
	Gateway   *gateway.Gateway
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SchedulerConfig overrides the game loop timing (optional)
	// If nil, defaults to scheduler.DefaultConfig()
	SchedulerConfig *scheduler.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
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
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	schedCfg := scheduler.DefaultConfig()
	if cfg.SchedulerConfig != nil {
		schedCfg = *cfg.SchedulerConfig
	}

	return newWithDependencies(store, clock.New(), random.New(), schedCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, schedCfg scheduler.Config, logger *slog.Logger) *App {
	simulator := sim.New(rnd)
	registry := room.NewRegistry(store, clk, rnd, logger)
	queue := match.NewQueue(registry, clk, logger)
	ledger := stats.NewLedger(store, clk, logger)

	// The hub doubles as the scheduler's broadcaster, so it is built first
	hub := gateway.NewHub(logger)
	sched := scheduler.New(schedCfg, registry, simulator, ledger, clk, hub, logger)
	gw := gateway.New(hub, registry, queue, sched, ledger, logger)

	return &App{
		Storage:   store,
		Clock:     clk,
		Random:    rnd,
		Simulator: simulator,
		Registry:  registry,
		Queue:     queue,
		Ledger:    ledger,
		Scheduler: sched,
		Hub:       hub,
		Gateway:   gw,
	}
}
