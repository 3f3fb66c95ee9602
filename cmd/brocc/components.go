package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/internal/config"
	"github.com/hyperjump/brocc/internal/taxonomy"
)

// Components holds the taxonomy source shared by the commands.
type Components struct {
	// Database is nil when lookups go to EUtils.
	Database  *taxonomy.SQLiteSource
	Cache     *taxonomy.Cache
	cachePath string
	logger    *zap.Logger
	closed    bool
}

// Close saves the lookup cache when a cache path is configured and closes the
// database. It is safe to call more than once.
func (c *Components) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.cachePath != "" && c.Cache != nil {
		if err := c.Cache.Save(c.cachePath); err != nil {
			c.logger.Warn("lookup cache save failed", zap.String("path", c.cachePath), zap.Error(err))
		}
	}
	if c.Database != nil {
		_ = c.Database.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{cachePath: cfg.Taxonomy.CachePath, logger: logger}

	var source taxonomy.Source
	if _, err := os.Stat(cfg.Taxonomy.DatabasePath); err == nil {
		db, err := taxonomy.OpenSQLite(cfg.Taxonomy.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open taxonomy database: %w", err)
		}
		c.Database = db
		source = db
		logger.Info("using local taxonomy database", zap.String("path", db.Path()))
	} else {
		source = taxonomy.NewEUtils(
			taxonomy.WithBaseURL(cfg.Taxonomy.EUtilsURL),
			taxonomy.WithAPIKey(cfg.Taxonomy.APIKey),
			taxonomy.WithMaxRetries(cfg.Taxonomy.MaxRetries),
			taxonomy.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Taxonomy.TimeoutSeconds) * time.Second}),
			taxonomy.WithEUtilsLogger(logger),
		)
		logger.Info("taxonomy database not found, using NCBI EUtils",
			zap.String("database_path", cfg.Taxonomy.DatabasePath),
			zap.String("eutils_url", cfg.Taxonomy.EUtilsURL))
	}

	c.Cache = taxonomy.NewCache(source, cfg.Taxonomy.CacheSize)
	if c.cachePath != "" {
		if err := c.Cache.Load(c.cachePath); err != nil {
			logger.Warn("lookup cache load skipped", zap.String("path", c.cachePath), zap.Error(err))
		} else {
			logger.Debug("lookup cache loaded", zap.String("path", c.cachePath), zap.Int("entries", c.Cache.Len()))
		}
	}
	return c, nil
}
