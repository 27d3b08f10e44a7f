// Package frogr ties the object graph mapping layers together: a Service
// owns the store, the model registry, the persistence engine and the
// repository factory, applies pending database patches on connect and
// hands out repositories.
package frogr

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/graph/sqlitestore"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/patch"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
	"github.com/joewhite86/frogr/schema"
)

// Version is the application version recorded in the graph and used by
// the patch system.
const Version = "1.0.0"

var (
	ErrNotConnected     = errors.New("service is not connected")
	ErrAlreadyConnected = errors.New("service is already connected")
)

// Config configures a Service.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
	// Version overrides the built-in application version, mainly for
	// embedding applications that version their own schema.
	Version string `mapstructure:"version"`
}

// DatabaseConfig locates the graph database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the REST endpoint.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoadConfig reads frogr.yml / frogr.yaml from the working directory,
// falling back to defaults. Environment variables override file values.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetDefault("database.path", "graph.db")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8282)
	v.SetDefault("log_level", "info")
	v.SetDefault("version", Version)

	v.SetConfigName("frogr")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("frogr")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// Service handles the communication with repositories and models. Connect
// opens or creates the database, sets up the schema and applies pending
// patches.
type Service struct {
	config   Config
	logger   *zap.Logger
	registry *schema.Registry
	engine   *persistence.Engine
	store    graph.Store
	factory  *repository.Factory
	patches  []patch.Patch
}

// New creates a disconnected service.
func New(config *Config, logger *zap.Logger) *Service {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Database.Path == "" {
		config.Database.Path = "graph.db"
	}
	if config.Version == "" {
		config.Version = Version
	}
	registry := schema.NewRegistry(logger)
	return &Service{
		config:   *config,
		logger:   logger,
		registry: registry,
		engine:   persistence.NewEngine(registry, logger),
	}
}

// Register adds model prototypes to the registry. Must be called before
// Connect so constraints and indexes are in place when the schema is set
// up.
func (s *Service) Register(prototypes ...model.Base) error {
	return s.registry.Register(prototypes...)
}

// RegisterPatches queues patches applied on the next Connect.
func (s *Service) RegisterPatches(patches ...patch.Patch) {
	s.patches = append(s.patches, patches...)
}

// Connect opens the database, sets up constraints and indexes for all
// registered types and applies pending patches.
func (s *Service) Connect(ctx context.Context) error {
	if s.store != nil {
		return ErrAlreadyConnected
	}
	store, err := sqlitestore.Open(s.config.Database.Path, s.logger)
	if err != nil {
		return err
	}
	s.store = store
	s.factory = repository.NewFactory(store, s.engine, s.logger)
	s.logger.Info("starting database instance",
		zap.String("path", s.config.Database.Path),
		zap.String("version", s.config.Version))

	runner, err := patch.NewRunner(store, s.engine, s.config.Version, s.logger)
	if err != nil {
		s.disconnect()
		return err
	}
	if err := runner.Register(s.patches...); err != nil {
		s.disconnect()
		return err
	}
	if err := runner.Apply(ctx); err != nil {
		s.disconnect()
		return err
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		s.disconnect()
		return err
	}
	if err := s.engine.EnsureSchema(tx); err != nil {
		tx.Rollback()
		s.disconnect()
		return err
	}
	if err := tx.Commit(); err != nil {
		s.disconnect()
		return err
	}
	return nil
}

func (s *Service) disconnect() {
	if s.store != nil {
		s.store.Close()
		s.store = nil
		s.factory = nil
	}
}

// Connected reports whether Connect succeeded.
func (s *Service) Connected() bool { return s.store != nil }

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.config }

// Registry returns the model registry.
func (s *Service) Registry() *schema.Registry { return s.registry }

// Engine returns the persistence engine.
func (s *Service) Engine() *persistence.Engine { return s.engine }

// Factory returns the repository factory, nil before Connect.
func (s *Service) Factory() *repository.Factory { return s.factory }

// Repository returns the repository for a registered type name.
func (s *Service) Repository(name string) (repository.Repository, error) {
	if s.factory == nil {
		return nil, ErrNotConnected
	}
	return s.factory.Get(name)
}

// BeginTx opens a transaction on the underlying store.
func (s *Service) BeginTx(ctx context.Context) (graph.Tx, error) {
	if s.store == nil {
		return nil, ErrNotConnected
	}
	return s.store.Begin(ctx)
}

// Close shuts the database down. The service can not be reused.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	s.factory = nil
	return err
}
