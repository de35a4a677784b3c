// Package main provides the pibox player entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/api/web"
	"github.com/osa030/pibox/internal/app/control"
	"github.com/osa030/pibox/internal/app/notification"
	"github.com/osa030/pibox/internal/app/playback"
	"github.com/osa030/pibox/internal/domain/catalog"
	"github.com/osa030/pibox/internal/infra/audio"
	"github.com/osa030/pibox/internal/infra/config"
	"github.com/osa030/pibox/internal/infra/gpio"
	"github.com/osa030/pibox/internal/infra/logger"
	"github.com/osa030/pibox/internal/infra/tags"
)

var (
	app        = kingpin.New("pibox", "pibox single-board music player")
	configPath = app.Flag("config", "Path to config file").Default("config/pibox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-tracks command
	listTracksCmd = app.Command("list-tracks", "List the playable tracks and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Re-initialize the logger with the configured level and rotation
	loggerConfig.MaxSizeMB = cfg.Log.MaxSizeMB
	loggerConfig.MaxBackups = cfg.Log.MaxBackups
	loggerConfig.MaxAgeDays = cfg.Log.MaxAgeDays
	if !*verbose {
		loggerConfig.Level = cfg.Log.Level
	}
	if *logfile == "" && cfg.Log.File != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = cfg.Log.File
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	_ = logCloser.Close()
	logCloser = closer

	if command == listTracksCmd.FullCommand() {
		err = listTracks(cfg, os.Stdout)
	} else {
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("pibox error: %v", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
	_ = logCloser.Close()
}

// listTracks prints the catalog in play order.
func listTracks(cfg *config.Config, out io.Writer) error {
	exts, err := playableExtensions(cfg.Library.Extensions)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Library.Dir, exts, tags.NewReader())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Tracks in %s:\n", cat.Dir())
	for i, t := range cat.Tracks() {
		fmt.Fprintf(out, "  %3d  %-40s %s\n", i+1, t.ID, t.DisplayName())
	}
	return nil
}

// playableExtensions drops configured extensions that no audio decoder
// handles, so those files never reach the catalog. An empty list keeps the
// catalog defaults.
func playableExtensions(configured []string) ([]string, error) {
	if len(configured) == 0 {
		return nil, nil
	}
	exts := make([]string, 0, len(configured))
	for _, ext := range configured {
		if !audio.Supported(ext) {
			zlog.Warn().Msgf("Ignoring library extension without a decoder: ext=%s", ext)
			continue
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return nil, errors.Mark(
			errors.Newf("no decoder for any configured extension %v", configured),
			catalog.ErrCatalog)
	}
	return exts, nil
}

// run executes the player. Using a separate function ensures deferred
// cleanup runs even when returning with an error.
func run(cfg *config.Config) error {
	// Catch signals before audio starts so an early interrupt still takes
	// the regular shutdown path below.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Startup failures below exit before any loop starts.
	exts, err := playableExtensions(cfg.Library.Extensions)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Library.Dir, exts, tags.NewReader())
	if err != nil {
		return errors.Wrap(err, "failed to load catalog")
	}
	zlog.Info().Msgf("Catalog loaded: dir=%s tracks=%d", cat.Dir(), cat.Len())

	engine, err := audio.NewEngine(audio.Config{
		SampleRate: cfg.Audio.SampleRate,
		Buffer:     cfg.BufferDuration(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize audio")
	}
	defer engine.Close()

	panel, err := gpio.NewPanelFromConfig(cfg.Hardware)
	if err != nil {
		return errors.Wrap(err, "failed to initialize hardware panel")
	}
	defer func() {
		if err := panel.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close hardware panel")
		}
	}()

	ctrl := playback.NewController(cat, engine, panel, playback.Config{
		DefaultVolume: cfg.DefaultVolume(),
	})
	if err := ctrl.Start(); err != nil {
		return errors.Wrap(err, "failed to start playback")
	}

	notifier := notification.NewManager()
	go notifier.Pump(ctrl.Events())
	defer notifier.Close()
	defer ctrl.Close()

	watchdog := playback.NewWatchdog(ctrl, playback.WatchdogConfig{
		Interval:    cfg.PollInterval(),
		BusyRetries: cfg.Playback.BusyQueryRetries,
	})
	watchdog.Start()
	// Shutdown is idempotent, so this also covers early returns.
	defer watchdog.Shutdown()

	// Quit requests from the console or a surface
	quitCh := make(chan struct{})
	var quitOnce sync.Once
	requestQuit := func() { quitOnce.Do(func() { close(quitCh) }) }
	dispatcher := control.NewDispatcher(ctrl, requestQuit)

	// Buttons
	control.BindButtons(panel, dispatcher, []string{
		control.ActionPrevious.String(),
		control.ActionNext.String(),
		control.ActionPause.String(),
		control.ActionRestart.String(),
	})

	// Network surface
	serverErrCh := make(chan error, 1)
	var webServer *web.Server
	var server *http.Server
	if cfg.ServerEnabled() {
		webServer, err = web.NewServer(ctrl, notifier)
		if err != nil {
			return errors.Wrap(err, "failed to create web server")
		}
		server = webServer.NewHTTPServer(cfg.Server.Addr)

		serverStartedCh := make(chan struct{})
		go func() {
			zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
			// Signal that we're about to start listening
			close(serverStartedCh)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrCh <- err
			}
		}()

		// Wait for server to start listening
		<-serverStartedCh
		// Give the server a moment to fully initialize
		time.Sleep(100 * time.Millisecond)
	}

	// Startup hooks run beside the main loop so a signal is served while
	// they execute; shutdown cancels whatever is still running.
	hooksCtx, cancelHooks := context.WithCancel(context.Background())
	defer cancelHooks()
	startHooksDone := make(chan struct{})
	go func() {
		defer close(startHooksDone)
		runHooks(hooksCtx, cfg.Server.Hooks.OnStarted, "on_started")
	}()

	// Console
	var lines control.LineReader
	if cfg.ConsoleEnabled() {
		rl, err := control.NewReadline(cfg.Console.Prompt)
		if err != nil {
			zlog.Warn().Err(err).Msg("Console unavailable, continuing without it")
		} else {
			lines = rl
			go control.NewConsole(rl, rl.Stdout(), dispatcher).Run()
		}
	}

	// Wait for shutdown signal, quit request, or server error
	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received shutdown signal: %s", sig)
	case <-quitCh:
		zlog.Info().Msg("Quit requested, shutting down...")
	case <-watchdog.Done():
		zlog.Info().Msg("Watchdog stopped, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	// Stop audio and join the watchdog first so no transition runs after this point
	watchdog.Shutdown()
	cancelHooks()
	<-startHooksDone
	zlog.Info().Msg("Playback stopped")

	if webServer != nil {
		// Close event streams so the server can drain
		webServer.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		zlog.Info().Msg("Server stopped")
	}

	if lines != nil {
		_ = lines.Close()
	}

	runHooks(context.Background(), cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}
