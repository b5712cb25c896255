package main

import (
	"github.com/spf13/cobra"

	"github.com/waterschap/hydroconv/pkg/config"
	"github.com/waterschap/hydroconv/pkg/convert"
)

func newClearCmd() *cobra.Command {
	var layers []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the target layers a conversion writes into",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if len(layers) == 0 {
				layers = convert.DefaultClearLayers
			}

			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			im := convert.NewImporter(s, newLogger())
			return im.ClearLayers(layers)
		},
	}

	cmd.Flags().StringSliceVar(&layers, "layers", nil, "layers to clear (default: all conversion targets)")
	return cmd
}
