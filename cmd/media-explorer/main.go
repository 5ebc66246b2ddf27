package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/handlers"
	"media-explorer/internal/logging"
	"media-explorer/internal/media"
	"media-explorer/internal/memory"
	"media-explorer/internal/metrics"
	"media-explorer/internal/middleware"
	"media-explorer/internal/startup"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// GOMEMLIMIT has to be in place before anything allocates heavily
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media": config.MediaDir,
		"cache": config.CacheDir,
	}))

	resolver, err := filesystem.NewResolver(config.MediaDir)
	if err != nil {
		startup.LogFatal("Failed to open media root: %v", err)
	}

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	startup.LogThumbnailInit(config.ThumbnailsEnabled, config.ThumbnailBackend)
	thumbs := newThumbnailCache(config, memMonitor)

	var statsProvider metrics.StatsProvider
	if thumbs != nil {
		statsProvider = thumbs
	}
	collector := metrics.NewCollector(statsProvider, time.Minute)
	collector.Start()

	h := handlers.New(config, resolver, thumbs)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streams enforce their own per-chunk deadlines
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	shutdownDone := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, collector, memMonitor)
		close(shutdownDone)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts
	<-shutdownDone
}

// newThumbnailCache returns nil when thumbnails are disabled or the cache
// cannot be opened. The API then answers thumbnail requests with 503.
func newThumbnailCache(config *startup.Config, gate media.Gate) *media.ThumbnailCache {
	if !config.ThumbnailsEnabled {
		return nil
	}

	opts := media.CacheOptions{
		Dir:      config.ThumbnailDir,
		MaxWidth: config.ThumbnailWidth,
		FrameAt:  config.ThumbnailTimestamp,
		Timeout:  config.GenerationTimeout,
		Workers:  config.ThumbnailWorkers,
		Gate:     gate,
	}

	if config.ThumbnailBackend == startup.BackendVips {
		vipsScaler, err := media.NewVipsDownscaler()
		if err != nil {
			logging.Warn("libvips unavailable, falling back to imaging: %v", err)
		} else {
			opts.Downscaler = vipsScaler
		}
	}

	cache, err := media.NewThumbnailCache(opts)
	if err != nil {
		logging.Warn("Thumbnails disabled: %v", err)
		config.ThumbnailsEnabled = false
		return nil
	}

	entries := 0
	if stats, err := cache.Stats(); err == nil {
		entries = stats.Entries
	}
	startup.LogThumbnailReady(cache.Dir(), entries)

	return cache
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health checks and build info
	r.HandleFunc("/health", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit: config.RateLimit,
		WindowSize:   time.Minute,
	}))
	api.HandleFunc("/directory", h.GetDirectory).Methods("GET")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/video", h.StreamVideo).Methods("GET")
	api.HandleFunc("/image", h.GetImage).Methods("GET")

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir)))

	return r
}

// buildHandler wraps the router in the process-wide middleware. Recoverer sits
// inside Logger so a recovered panic is logged as a 500.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.SecurityHeaders(router)
	handler = middleware.Recoverer(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.RequestID(handler)
	return middleware.Compression(middleware.DefaultCompressionConfig())(handler)
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	mr := http.NewServeMux()
	mr.Handle("/metrics", h.MetricsHandler())
	mr.HandleFunc("/health", h.LivenessCheck)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, memMonitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	media.ShutdownVips()

	startup.LogShutdownComplete()
}
