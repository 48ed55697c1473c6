// Command parking runs a single filtered query against the Arnhem parking
// layer and logs every spot it returns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/arnhem-parking/internal/config"
	"github.com/samvad-hq/arnhem-parking/internal/logger"
	"github.com/samvad-hq/arnhem-parking/pkg/arnhem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parking query failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []arnhem.Option{arnhem.WithTimeout(cfg.RequestTimeout), arnhem.WithLogger(log)}
	if cfg.APIBaseURL != "" {
		opts = append(opts, arnhem.WithBaseURL(cfg.APIBaseURL))
	}

	return arnhem.Use(ctx, func(ctx context.Context, client *arnhem.Client) error {
		spots, err := client.Locations(ctx, cfg.ParkingLimit, cfg.ParkingFilter)
		if err != nil {
			log.ErrorObj("locations query failed", "error", err)
			return err
		}

		unique := make(map[int]struct{}, len(spots))
		for _, spot := range spots {
			unique[spot.ID] = struct{}{}
			log.InfoObj("parking spot", "spot", spot)
		}
		log.InfoObj("locations query completed", "summary", map[string]any{
			"filter":     cfg.ParkingFilter,
			"total":      len(spots),
			"unique_ids": len(unique),
		})
		return nil
	}, opts...)
}
