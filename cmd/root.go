package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/catalog"
	"github.com/metrograph/demandgen/internal/config"
	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "demandgen",
	Short: "OSM-derived travel demand generator",
	Long:  "Fetches OpenStreetMap roads, buildings and places per city, assigns buildings to neighborhoods, and synthesizes commuter demand between them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initCatalog opens the configured run catalog. With no driver configured it
// returns a nop store, so commands never branch on catalog availability.
func initCatalog(ctx context.Context) (catalog.Store, error) {
	return catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DatabaseURL)
}

// initPipeline wires the fetcher, dataset store and catalog from config.
// Close the returned catalog store when done.
func initPipeline(ctx context.Context) (*pipeline.Pipeline, catalog.Store, error) {
	cat, err := initCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.FromConfig(cfg, cat), cat, nil
}

// loadCities reads the configured cities file.
func loadCities() ([]model.City, error) {
	return config.LoadCities(cfg.Cities.Path)
}

// cityByName resolves a city argument against the cities file.
func cityByName(name string) (model.City, error) {
	cities, err := loadCities()
	if err != nil {
		return model.City{}, err
	}
	c, ok := config.FindCity(cities, name)
	if !ok {
		return model.City{}, fmt.Errorf("city %q not found in %s", name, cfg.Cities.Path)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
