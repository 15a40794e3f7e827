package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebovdev/radiobox/internal/appliance"
	"github.com/glebovdev/radiobox/internal/audio"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/metrics"
	"github.com/glebovdev/radiobox/internal/network"
	"github.com/glebovdev/radiobox/internal/sampler"
	"github.com/glebovdev/radiobox/internal/station"
	"github.com/glebovdev/radiobox/internal/ui"
	"github.com/glebovdev/radiobox/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// exitRestart tells the service supervisor to start the process again.
const exitRestart = 3

const shutdownTimeout = 5 * time.Second

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	headlessFlag = flag.Bool("headless", false, "Run without the terminal front panel")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	envErr := config.LoadEnv()
	cfg, cfgErr := config.Load()
	cfg.ApplyEnv()

	setupLogging(cfg.LogLevel)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("Failed to load .env")
	}
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("Failed to load config, using defaults")
	}

	os.Exit(run(cfg))
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if *debugFlag {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if *headlessFlag {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}

	// The panel owns the terminal, so logs go to a file.
	cacheDir, err := config.GetCacheDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
	}
	logPath := filepath.Join(cacheDir, "debug.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05", NoColor: true})
	if *debugFlag {
		fmt.Printf("Debug log: %s\n", logPath)
	}
}

func run(cfg *config.Config) int {
	log.Info().Msgf("Starting %s v%s", config.AppName, config.AppVersion)

	stationsPath, err := cfg.StationsPath()
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve stations file")
		return 1
	}
	records, err := config.LoadStations(stationsPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load stations, starting with an empty list")
	}
	registry := station.NewRegistry(cfg.Stations.Max)
	registry.Replace(station.FromRecords(records))
	log.Info().Int("count", registry.Len()).Str("file", stationsPath).Msg("Stations loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	monitor := network.NewMonitor(cfg.Recovery.ProbeURL, cfg.Recovery.ProbeInterval)
	go monitor.Run(ctx)

	smp := sampler.New(sampler.MemoryHeadroom())
	m := metrics.New()
	app := appliance.New(appliance.Options{
		Config:       cfg,
		StationsPath: stationsPath,
		Registry:     registry,
		Opener:       audio.NewOpener(audio.NewSpeaker(), smp, cfg.Playback),
		Link:         monitor,
		Sampler:      smp,
		Metrics:      m,
	})

	var srv *http.Server
	if cfg.Web.Enabled {
		srv = &http.Server{
			Addr:              cfg.Web.Listen,
			Handler:           web.NewRouter(web.NewHandler(app), m, app.UpdateMetrics),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Msgf("Web API listening on %s", cfg.Web.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Web server failed")
			}
		}()
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- app.Run(ctx)
	}()

	var panel *ui.UI
	panelDone := make(chan error, 1)
	if !*headlessFlag {
		panel = ui.NewUI(app, cfg.Theme)
		go func() {
			panelDone <- panel.Run()
		}()
	}

	var runErr error
	select {
	case runErr = <-runDone:
		if panel != nil {
			panel.Shutdown()
			<-panelDone
		}
	case err := <-panelDone:
		if err != nil {
			log.Error().Err(err).Msg("Error running front panel")
		}
		cancel()
		runErr = <-runDone
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Web server shutdown")
		}
	}

	if errors.Is(runErr, appliance.ErrRebootRequested) {
		log.Warn().Msg("Exiting for restart")
		return exitRestart
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("Appliance stopped with error")
		return 1
	}
	log.Info().Msgf("%s stopped", config.AppName)
	return 0
}
