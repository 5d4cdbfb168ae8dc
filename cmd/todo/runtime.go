package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evanschultz/todo/internal/adapters/server/common"
	"github.com/evanschultz/todo/internal/adapters/storage/diskv"
	"github.com/evanschultz/todo/internal/adapters/storage/sqlite"
	"github.com/evanschultz/todo/internal/app"
	"github.com/evanschultz/todo/internal/config"
	"github.com/evanschultz/todo/internal/platform"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	driver     string
	appName    string
	devMode    bool
}

func defaultRootOptions() rootOptions {
	opts := rootOptions{
		appName: "todo",
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("TODO_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("TODO_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}
	return opts
}

// resolvedConfig is the outcome of merging paths, env, flags, and the TOML file.
type resolvedConfig struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
}

func resolveConfig(opts rootOptions) (resolvedConfig, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return resolvedConfig{}, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("TODO_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("TODO_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return resolvedConfig{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if driver := strings.TrimSpace(opts.driver); driver != "" {
		cfg.Database.Driver = driver
		if err := cfg.Validate(); err != nil {
			return resolvedConfig{}, err
		}
	}
	// The sqlite file default makes no sense as a diskv directory.
	if cfg.Database.Path == paths.DBPath {
		cfg.Database.Path = paths.StorageFor(cfg.StorageDriver())
	}
	return resolvedConfig{paths: paths, configPath: configPath, cfg: cfg}, nil
}

// runtimeEnv is everything a command needs once storage is open.
type runtimeEnv struct {
	opts     rootOptions
	resolved resolvedConfig
	logger   *runtimeLogger
	repo     app.Repository
	model    *app.StoreModel
	history  app.ChangeFeed
	sessions *common.Sessions
	close    func() error
}

func openRuntime(opts rootOptions, stderr io.Writer) (*runtimeEnv, error) {
	resolved, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg := resolved.cfg

	logger, err := newRuntimeLogger(stderr, logOptions{
		AppName: opts.appName,
		DevMode: opts.devMode,
		Logging: cfg.Logging,
		DataDir: resolved.paths.DataDir,
		Now:     time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode)
	logger.Debug("runtime paths resolved", "config_path", resolved.configPath, "data_dir", resolved.paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.FilePath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	repo, history, closeRepo, err := openRepository(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	model := app.NewStoreModel(repo, uuid.NewString, time.Now)
	env := &runtimeEnv{
		opts:     opts,
		resolved: resolved,
		logger:   logger,
		repo:     repo,
		model:    model,
		history:  history,
		sessions: common.NewSessions(model, logger),
	}
	env.close = func() error {
		if err := closeRepo(); err != nil {
			logger.Warn("storage close failed", "driver", cfg.StorageDriver(), "path", cfg.Database.Path, "err", err)
		}
		return logger.Close()
	}
	return env, nil
}

// openRepository opens the configured storage driver. history is nil when the driver keeps no ledger.
func openRepository(cfg config.Config, logger *runtimeLogger) (app.Repository, app.ChangeFeed, func() error, error) {
	driver := cfg.StorageDriver()
	logger.Debug("opening repository", "driver", driver, "path", cfg.Database.Path)
	switch driver {
	case config.DriverSQLite:
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, nil, nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")
		return repo, repo, repo.Close, nil
	case config.DriverDiskv:
		repo, err := diskv.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("diskv open failed", "base_path", cfg.Database.Path, "err", err)
			return nil, nil, nil, fmt.Errorf("open diskv repository: %w", err)
		}
		logger.Debug("diskv repository ready", "base_path", cfg.Database.Path)
		return repo, nil, repo.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// persistDefaultRoute records the TUI's last route in the config file.
func persistDefaultRoute(configPath, route string) error {
	if err := config.UpsertDefaultRoute(configPath, route); err != nil {
		return fmt.Errorf("persist default route: %w", err)
	}
	return nil
}
