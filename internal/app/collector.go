package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/arnhem-parking/internal/collector"
	"github.com/samvad-hq/arnhem-parking/internal/config"
	"github.com/samvad-hq/arnhem-parking/internal/logger"
	"github.com/samvad-hq/arnhem-parking/internal/storage"
	"github.com/samvad-hq/arnhem-parking/pkg/arnhem"
	"github.com/samvad-hq/arnhem-parking/pkg/publishers"
	"github.com/samvad-hq/arnhem-parking/pkg/queries"
)

// Collector is the long-running poller. It owns the API client, the
// publishers and the seen-spot store, and releases all of them on exit.
type Collector struct {
	cfg          *config.Config
	queryReg     *queries.Registry
	client       *arnhem.Client
	fanout       *publishers.Fanout
	store        storage.Store
	service      *collector.Service
	pollInterval time.Duration
	log          logger.Logger
}

// NewCollector builds a collector runtime from config files.
func NewCollector(ctx context.Context, cfg *config.Config, log logger.Logger) (*Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	queryReg, err := queries.LoadRegistry(cfg.QueriesFile)
	if err != nil {
		return nil, fmt.Errorf("load queries registry: %w", err)
	}
	queryList := queryReg.All()
	queryIDs := make([]string, 0, len(queryList))
	for _, q := range queryList {
		queryIDs = append(queryIDs, q.ID)
	}
	log.InfoObj("queries registry loaded", "queries_meta", map[string]any{
		"count": len(queryIDs),
		"ids":   queryIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		SpotTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"spot_ttl_seconds":         int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	opts := []arnhem.Option{arnhem.WithTimeout(cfg.RequestTimeout), arnhem.WithLogger(log)}
	if cfg.APIBaseURL != "" {
		opts = append(opts, arnhem.WithBaseURL(cfg.APIBaseURL))
	}
	client := arnhem.New(opts...)

	return &Collector{
		cfg:          cfg,
		queryReg:     queryReg,
		client:       client,
		fanout:       fanout,
		store:        store,
		service:      collector.NewService(client, fanout, log, store),
		pollInterval: cfg.PollInterval,
		log:          log,
	}, nil
}

// Run polls once immediately and then on every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if c == nil || c.service == nil {
		return fmt.Errorf("collector is not initialized")
	}
	defer c.close()

	qs := c.queryReg.All()
	if len(qs) == 0 {
		c.log.WarnObj("no queries configured; collector idle", "queries_file", c.cfg.QueriesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	c.log.InfoObj("collector loop starting", "collector_state", map[string]any{
		"queries_count":    len(qs),
		"publishers_count": c.fanout.Size(),
		"poll_interval":    c.pollInterval.String(),
	})

	if err := c.RunOnce(ctx); err != nil {
		c.log.ErrorObj("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.InfoObj("collector loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.log.ErrorObj("scheduled poll failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single pass across all queries.
func (c *Collector) RunOnce(ctx context.Context) error {
	qs := c.queryReg.All()
	start := time.Now()
	c.log.InfoObj("poll started", "poll_meta", map[string]any{
		"queries_count": len(qs),
		"started_at":    start.UTC(),
	})
	stats, err := c.service.Run(ctx, qs)
	c.log.InfoObj("poll completed", "poll_meta", map[string]any{
		"queries_count": stats.Queries,
		"spots":         stats.Spots,
		"fresh":         stats.Fresh,
		"published":     stats.Published,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return err
}

// close releases the client, publishers and store, logging any failures.
func (c *Collector) close() {
	if c == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.log.ErrorObj("api client close failed", "error", err)
	}
	if err := c.fanout.Close(); err != nil {
		c.log.ErrorObj("publishers close failed", "error", err)
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.ErrorObj("storage close failed", "error", err)
		}
	}
}
