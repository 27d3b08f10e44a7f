package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joewhite86/frogr"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/rest"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on, overrides the config file")
}

// Person is the demo model the standalone server ships with.
type Person struct {
	model.Entity
	Name    string    `json:"name,omitempty" frogr:"unique,indexed=lowercase,required"`
	Age     int64     `json:"age,omitempty"`
	Friends []*Person `json:"friends,omitempty" frogr:"relatedTo=KnownBy,direction=both"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	Long:  "Open the database, apply pending patches and serve the registered models over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := frogr.LoadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			config.Server.Port = servePort
		}
		logger, err := newLogger(config.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		service := frogr.New(config, logger)
		if err := service.Register(&Person{}); err != nil {
			return err
		}
		if err := service.Connect(cmd.Context()); err != nil {
			return err
		}
		defer service.Close()

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		router.Use(middleware.Recoverer)
		if err := rest.Mount(router, service.Factory(), logger, "Person"); err != nil {
			return err
		}

		address := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
		server := &http.Server{
			Addr:              address,
			Handler:           router,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("address", address))
			errs <- server.ListenAndServe()
		}()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errs:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-signals:
			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parsed)
	return config.Build()
}
