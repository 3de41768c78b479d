package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/overpass"
)

var fetchDataset string

var fetchCmd = &cobra.Command{
	Use:   "fetch <city>",
	Short: "Fetch raw OSM data for a single city",
	Long:  "Downloads roads, buildings and places for the named city's bounding box and persists them under the output directory. Use --dataset to fetch one dataset only.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		city, err := cityByName(args[0])
		if err != nil {
			return err
		}

		var datasets []overpass.Dataset
		if fetchDataset != "" {
			ds := overpass.Dataset(fetchDataset)
			if err := ds.Validate(); err != nil {
				return err
			}
			datasets = []overpass.Dataset{ds}
		}

		p, cat, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer cat.Close() //nolint:errcheck

		n, err := p.FetchCity(ctx, city, datasets)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", city.Name)
		}

		zap.L().Info("fetch complete",
			zap.String("city", city.Name),
			zap.Int("features", n),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDataset, "dataset", "", "fetch a single dataset (roads, buildings, places)")
	rootCmd.AddCommand(fetchCmd)
}
