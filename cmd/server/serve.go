package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/callcore/internal/adapter/driven/audio/loopback"
	"github.com/Wyydra/callcore/internal/adapter/driven/call/memory"
	"github.com/Wyydra/callcore/internal/adapter/driven/gateway/ws"
	handler "github.com/Wyydra/callcore/internal/adapter/driving/http"
	"github.com/Wyydra/callcore/internal/config"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/Wyydra/callcore/internal/core/service"
	"github.com/Wyydra/callcore/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer, err := logger.Setup(cfg.Log)
		if err != nil {
			return err
		}
		defer closer.Close()
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := memory.NewBackend(memory.Options{
		Endpoints:       cfg.Backend.DomainEndpoints(),
		InitialEndpoint: cfg.Backend.InitialEndpoint,
		Latency:         cfg.Backend.Latency,
	})
	calls := service.NewCallService(backend, service.NewCallStore())
	hub := ws.NewHub()

	var (
		audio port.AudioLoop
		mic   port.MicPermission
	)
	if cfg.Audio.Enabled {
		audio = loopback.New(loopback.NewTone(cfg.Audio.ToneHz, cfg.Audio.SampleRate), io.Discard, loopback.Options{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
		})
		mic = loopback.NewPermission(cfg.Audio.MicGranted)
	}

	monitor := service.NewMonitor(calls, hub, audio, mic)
	launcher := service.NewLauncher(ctx, calls, service.LaunchPolicy{
		IncomingDelay:         cfg.Call.IncomingDelay,
		OutgoingActivateDelay: cfg.Call.OutgoingActivateDelay,
	})

	var debug *memory.Backend
	if cfg.HTTP.DebugRoutes {
		debug = backend
	}
	h := handler.NewHandler(calls, launcher, monitor, hub, debug)

	go hub.Run()
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx)
	}()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: h.NewRouter(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
		log.Error().Err(runErr).Msg("Server failed")
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Ends any live call session, which puts the store back to NoCall.
	cancel()
	launcher.Wait()
	<-monitorDone
	hub.Stop()

	log.Info().Msg("Server exited")
	return runErr
}
