package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
	"github.com/liuran001/TrackFetch-Go/engine/cache"
	"github.com/liuran001/TrackFetch-Go/engine/config"
	"github.com/liuran001/TrackFetch-Go/engine/db"
	"github.com/liuran001/TrackFetch-Go/engine/download"
	"github.com/liuran001/TrackFetch-Go/engine/downloader"
	"github.com/liuran001/TrackFetch-Go/engine/embed"
	logpkg "github.com/liuran001/TrackFetch-Go/engine/logger"
	"github.com/liuran001/TrackFetch-Go/engine/manager"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/liuran001/TrackFetch-Go/engine/worker"
)

// App wires all application dependencies.
type App struct {
	Config        *config.Config
	Logger        *logpkg.Logger
	DB            *db.Repository
	Pool          *worker.Pool
	HTTP          *download.Pool
	FileCache     *cache.FileCache
	MetadataCache *cache.MetadataCache[*engine.MetadataRecord]
	SearchCache   *cache.MetadataCache[[]engine.SearchResult]
	Aggregator    *metadata.Aggregator
	Strategies    *downloader.Set
	Manager       *manager.Manager
	Build         BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logpkg.New(logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
	})
	if err != nil {
		return nil, err
	}

	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "cache.db"
	}
	repo, err := db.Open(db.Options{
		Path:            databasePath,
		Logger:          logpkg.NewGormLogger(log.Slog(), logpkg.GormLevel(conf.GetString("LogLevel")), conf.GetMillis("DBSlowQueryMs")),
		MaxOpenConns:    conf.GetInt("DBMaxOpenConns"),
		MaxIdleConns:    conf.GetInt("DBMaxIdleConns"),
		ConnMaxLifetime: conf.GetSeconds("DBConnMaxLifetimeSec"),
	})
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	fileCache, err := cache.NewFileCache(ctx, cache.FileCacheOptions{
		Dir:     conf.GetString("CacheDir"),
		MaxSize: conf.GetMegabytes("FileCacheMaxMB"),
		Index:   repo,
		Logger:  log.With("component", "filecache"),
	})
	if err != nil {
		return nil, fmt.Errorf("init file cache: %w", err)
	}
	metaCache := cache.NewMetadataCache[*engine.MetadataRecord]()
	searchCache := cache.NewMetadataCache[[]engine.SearchResult]()
	cacheTTL := conf.GetSeconds("MetadataCacheTTLSec")

	proxy := strings.TrimSpace(conf.GetString("Proxy"))
	httpPool, err := download.NewPool(download.Options{
		Timeout:    conf.GetSeconds("HTTPTimeoutSec"),
		Proxy:      proxy,
		Attempts:   conf.GetInt("FetchAttempts"),
		RetryDelay: conf.GetMillis("FetchRetryDelayMs"),
		Logger:     log.With("component", "http"),
	})
	if err != nil {
		return nil, fmt.Errorf("init connection pool: %w", err)
	}

	providers, lyricsProviders, err := metadata.Build(metadata.Deps{
		Config:     conf,
		Logger:     log,
		HTTPClient: httpPool.Client(),
		UserAgent:  httpPool.UserAgent(),
	})
	if err != nil {
		return nil, err
	}
	aggregator := metadata.New(metadata.Options{
		Providers:        providers,
		Lyrics:           lyricsProviders,
		Cache:            metaCache,
		CacheTTL:         cacheTTL,
		ProviderTimeout:  conf.GetSeconds("ProviderTimeoutSec"),
		AggregateTimeout: conf.GetSeconds("AggregateTimeoutSec"),
		LyricsTimeout:    conf.GetSeconds("LyricsTimeoutSec"),
		Logger:           log.With("component", "metadata"),
	})

	processor := embed.NewProcessor(embed.Options{
		Command:    conf.GetString("ProcessorCommand"),
		Script:     conf.GetString("ProcessorScript"),
		FFmpegPath: conf.GetString("FFmpegPath"),
		Logger:     log.With("component", "processor"),
	})
	embedder := embed.WithLocalFallback(processor, audio.NewTagger(log), log)

	downloadDir := conf.GetString("DownloadDir")
	tempRoot := strings.TrimSpace(conf.GetString("TempDir"))
	if tempRoot == "" {
		tempRoot = filepath.Join(downloadDir, "temp")
	}
	accel := "none"
	if conf.GetBool("HardwareAccel") {
		accel = conf.GetString("HardwareAccelMode")
	}

	searcher := downloader.NewSearcher(downloader.SearcherOptions{
		Executable:    conf.GetString("YtDlpPath"),
		Proxy:         proxy,
		Cache:         searchCache,
		CacheTTL:      cacheTTL,
		RatePerSecond: conf.GetFloat64("SearchRatePerSecond"),
		Logger:        log.With("component", "search"),
	})
	primary := downloader.NewYtDlp(downloader.YtDlpOptions{
		Executable:          conf.GetString("YtDlpPath"),
		FFmpegPath:          conf.GetString("FFmpegPath"),
		Proxy:               proxy,
		TempRoot:            tempRoot,
		SocketTimeout:       conf.GetInt("SocketTimeout"),
		ConcurrentFragments: conf.GetInt("MaxConcurrentFragments"),
		FFmpegThreads:       conf.GetInt("FFmpegThreads"),
		HardwareAccel:       accel,
		Searcher:            searcher,
		Validator: downloader.NewValidator(downloader.Limits{
			MaxLossySize:    conf.GetMegabytes("MaxFileSizeMB"),
			MaxLosslessSize: conf.GetMegabytes("MaxLosslessFileSizeMB"),
			MaxDuration:     time.Duration(conf.GetInt("MaxDurationMin")) * time.Minute,
		}),
		Logger: log.With("component", "ytdlp"),
	})
	var fallback downloader.Strategy
	if conf.GetBool("EnableFallbackStrategy") && processor.Configured() {
		fallback = downloader.NewScript(downloader.ScriptOptions{
			Processor:   processor,
			Metadata:    aggregator,
			Searcher:    searcher,
			Covers:      httpPool.Fetch,
			CoverMaxPx:  conf.GetInt("CoverMaxPx"),
			DownloadDir: downloadDir,
			Logger:      log.With("component", "script"),
		})
	}
	strategies := downloader.NewSet(primary, fallback)

	maxConcurrent := conf.GetInt("MaxConcurrentDownloads")
	pool := worker.New(worker.Options{
		Size:   maxConcurrent,
		Logger: log.With("component", "worker"),
	})
	mgr := manager.New(manager.Options{
		MaxConcurrent: maxConcurrent,
		AutoStart:     func() bool { return conf.GetBool("AutoStart") },
		TickInterval:  conf.GetMillis("PromoteIntervalMs"),
		Strategies:    strategies,
		Metadata:      aggregator,
		Embedder:      embedder,
		Covers:        httpPool.Fetch,
		CoverCache:    fileCache,
		CoverMaxPx:    conf.GetInt("CoverMaxPx"),
		Pool:          pool,
		Stats:         repo,
		Logger:        log.With("component", "manager"),
	})

	return &App{
		Config:        conf,
		Logger:        log,
		DB:            repo,
		Pool:          pool,
		HTTP:          httpPool,
		FileCache:     fileCache,
		MetadataCache: metaCache,
		SearchCache:   searchCache,
		Aggregator:    aggregator,
		Strategies:    strategies,
		Manager:       mgr,
		Build:         build,
	}, nil
}

// Start launches the cache janitors and the promotion loop.
func (a *App) Start(ctx context.Context) error {
	interval := time.Minute
	a.MetadataCache.StartJanitor(ctx, interval)
	a.SearchCache.StartJanitor(ctx, interval)
	a.Manager.Start(ctx)

	metaNames, lyricsNames := a.Aggregator.ProviderNames()
	a.Logger.Info("trackfetch started",
		"version", a.Build.BinVersion,
		"commit", a.Build.CommitSHA,
		"runtime", a.Build.RuntimeVer,
		"arch", a.Build.BuildArch,
		"strategies", a.Strategies.Names(),
		"metadata_providers", metaNames,
		"lyrics_providers", lyricsNames,
		"max_concurrent", a.Config.GetInt("MaxConcurrentDownloads"),
		"workers", a.Pool.Size(),
	)
	return nil
}

// Shutdown releases resources in reverse order of construction.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Manager != nil {
		if err := a.Manager.Shutdown(ctx); err != nil {
			a.Logger.Warn("download manager did not drain", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown manager: %w", err)
			}
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close logger: %w", err)
		}
	}

	return firstErr
}
