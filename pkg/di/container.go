// Package di provides dependency injection container
package di

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ssargent/nifkit/pkg/api" //nolint:depguard
	"github.com/ssargent/nifkit/pkg/codec"
	"github.com/ssargent/nifkit/pkg/config"
	"github.com/ssargent/nifkit/pkg/journal"
	"github.com/ssargent/nifkit/pkg/logging"
	"github.com/ssargent/nifkit/pkg/schema"
	"github.com/ssargent/nifkit/pkg/storage"
)

// Container holds all the dependencies for the application. Stores are
// opened on first use and released by Close.
type Container struct {
	mu sync.Mutex

	config        *config.Config
	logger        *zap.Logger
	registry      *prometheus.Registry
	metrics       *api.Metrics
	codec         *codec.GraphCodec
	backups       *storage.BackupStore
	journal       *journal.Writer
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		config:        config.DefaultConfig(),
		logger:        zap.NewNop(),
		serverFactory: api.NewServerFactory(),
	}
}

// Configure installs cfg and builds the logger it describes. It must be
// called before any store or the codec is requested.
func (c *Container) Configure(cfg *config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	c.logger = log
	c.codec = nil
	return nil
}

// Config returns the active configuration
func (c *Container) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Logger returns the application logger
func (c *Container) Logger() *zap.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// Metrics returns the metrics collectors and the registry they belong to.
func (c *Container) Metrics() (*api.Metrics, *prometheus.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics == nil {
		c.registry = prometheus.NewRegistry()
		c.metrics = api.NewMetrics(c.registry)
	}
	return c.metrics, c.registry
}

// Codec returns the codec over the built-in schema, configured from
// convert.preserve_unknown and reporting to Metrics.
func (c *Container) Codec() (*codec.GraphCodec, error) {
	metrics, _ := c.Metrics()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codec != nil {
		return c.codec, nil
	}
	reg, err := schema.Default()
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}
	c.codec = codec.New(reg,
		codec.WithLogger(c.logger),
		codec.WithPreserveUnknown(c.config.Convert.PreserveUnknown),
		codec.WithMetrics(metrics),
	)
	return c.codec, nil
}

// BackupStore opens the backup store under storage.data_dir.
func (c *Container) BackupStore() (*storage.BackupStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backups != nil {
		return c.backups, nil
	}
	s, err := storage.NewBackupStore(c.config.Storage.BackupDir(), nil)
	if err != nil {
		return nil, err
	}
	c.backups = s
	return s, nil
}

// Journal opens the conversion journal for appending.
func (c *Container) Journal() (*journal.Writer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.journal != nil {
		return c.journal, nil
	}
	w, err := journal.NewWriter(journal.WriterConfig{FilePath: c.config.Storage.JournalPath()})
	if err != nil {
		return nil, err
	}
	c.journal = w
	return w, nil
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// Close releases every store that was opened and flushes the logger.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	if c.journal != nil {
		errs = errors.CombineErrors(errs, c.journal.Close())
		c.journal = nil
	}
	if c.backups != nil {
		errs = errors.CombineErrors(errs, c.backups.Close())
		c.backups = nil
	}
	_ = c.logger.Sync()
	return errs
}
