package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kass/go-blast-survey/pkg/models"
)

func newLayerCmd(a *app) *cobra.Command {
	layerCmd := &cobra.Command{
		Use:   "layer",
		Short: "Manage GeoJSON map layers",
	}
	layerCmd.AddCommand(newLayerCreateCmd(a), newLayerListCmd(a), newLayerShowCmd(a))
	return layerCmd
}

func newLayerCreateCmd(a *app) *cobra.Command {
	var (
		layer models.MapLayer
		file  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a GeoJSON file as a map layer",
		Long: `Store a GeoJSON FeatureCollection, Feature or geometry as a named map
layer. Use --file - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return eris.Wrapf(err, "blastctl: read %s", file)
			}
			layer.GeoJSON = data

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			if _, err := s.CreateMapLayer(ctx, &layer); err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(layer)
			}
			a.printSuccess("Created map layer %d %q (%s)", layer.ID, layer.Name, layer.LayerType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&layer.Name, "name", "n", "", "Layer name")
	cmd.Flags().StringVarP(&layer.LayerType, "type", "t", models.DefaultLayerType, "Layer type")
	cmd.Flags().StringVarP(&file, "file", "f", "", "GeoJSON file")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newLayerListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored map layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			layers, err := s.ListMapLayers(ctx)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(layers)
			}
			a.printTitle("Map layers")
			if len(layers) == 0 {
				a.printWarning("No map layers stored")
				return nil
			}
			for _, l := range layers {
				a.printStat(l.Name, fmt.Sprintf("#%d %s", l.ID, l.LayerType))
			}
			return nil
		},
	}
}

func newLayerShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <layer-id>",
		Short: "Print a map layer's GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			layer, err := s.GetMapLayer(ctx, id)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(layer)
			}
			_, err = fmt.Fprintln(a.out, string(layer.GeoJSON))
			return err
		},
	}
}
