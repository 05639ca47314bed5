// Command orientd rotates the display and the touch input to follow the
// physical orientation reported by an accelerometer.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/orientd/internal/api"
	"github.com/banshee-data/orientd/internal/config"
	"github.com/banshee-data/orientd/internal/display"
	"github.com/banshee-data/orientd/internal/engine"
	"github.com/banshee-data/orientd/internal/health"
	"github.com/banshee-data/orientd/internal/history"
	"github.com/banshee-data/orientd/internal/monitoring"
	"github.com/banshee-data/orientd/internal/orientation"
	"github.com/banshee-data/orientd/internal/sensor"
	"github.com/banshee-data/orientd/internal/version"
)

type options struct {
	configPath string
	logFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "orientd",
		Short:         "Rotate the screen and touch input to match an accelerometer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the JSON config file")
	cmd.Flags().StringVarP(&opts.logFile, "log-file", "l", "", "also append log output to this file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// execute wires the real hardware and X11 driver and runs until SIGINT or
// SIGTERM.
func execute(parent context.Context, opts *options) error {
	log, closer, err := monitoring.NewLogger(os.Stderr, opts.logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orientd: %v\n", err)
		return err
	}
	defer closer.Close()
	monitoring.SetLogger(log.Debugf)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.WithError(err).Error("failed to load config")
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	driver := display.NewXDriver(cfg.DisplayOutput, cfg.CommandTimeout)
	if err := run(ctx, cfg, cfg.Backend(), driver, log); err != nil {
		log.WithError(err).Error("orientd stopped")
		return err
	}
	return nil
}

// run opens the sensor, starts the optional surfaces and blocks in the poll
// loop until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, backend sensor.Backend, driver display.DisplayDriver, log *logrus.Logger) error {
	log.WithFields(logrus.Fields{
		"build":    version.Get().String(),
		"accel":    cfg.AccelDevice,
		"input":    cfg.InputDeviceID(),
		"backend":  cfg.SensorBackend,
		"interval": cfg.PollInterval.String(),
	}).Info("starting orientd")

	reader, err := sensor.Open(backend, cfg.AccelDevice, log)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, ov := range orientation.Overlaps(orientation.Rules()) {
		log.WithField("overlap", ov.String()).Warn("orientation regions overlap; the earlier rule wins")
	}

	var observers []engine.TransitionObserver
	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB, log)
		if err != nil {
			return err
		}
		defer store.Close()
		observers = append(observers, store)
	}

	loop := engine.New(reader, display.NewApplier(driver, cfg.InputDeviceID(), log), engine.Options{
		Interval:  cfg.PollInterval,
		Log:       log,
		Observers: observers,
	})

	if cfg.HealthListen != "" {
		hs := health.NewServer(log)
		if _, err := hs.Listen(cfg.HealthListen); err != nil {
			return err
		}
		hs.SetServing(true)
		defer func() {
			hs.SetServing(false)
			hs.Stop()
		}()
	}

	var wg sync.WaitGroup
	if cfg.AdminListen != "" {
		ln, err := net.Listen("tcp", cfg.AdminListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.AdminListen, err)
		}
		var hist api.TransitionSource
		if store != nil {
			hist = store
		}
		mux := api.NewServer(loop, hist, cfg.AccelDevice, cfg.InputDeviceID(), log).ServeMux()
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				ln.Close()
				return err
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, ln, api.LoggingMiddleware(log, mux), log); err != nil {
				log.WithError(err).Error("admin server failed")
			}
		}()
	}

	err = loop.Run(ctx)
	wg.Wait()
	log.Info("orientd stopped")
	return err
}
