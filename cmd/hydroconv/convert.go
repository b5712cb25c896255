package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/waterschap/hydroconv/pkg/config"
	"github.com/waterschap/hydroconv/pkg/convert"
	"github.com/waterschap/hydroconv/pkg/dflowfm"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a D-Flow FM schematisation into the target store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := newLogger()

			mdu, err := dflowfm.ReadMDU(cfg.Source.MDU)
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := convert.Run(s, mdu, convert.Options{
				ClearFirst:   cfg.Convert.ClearFirst,
				SkipNetwork:  cfg.Convert.SkipNetwork,
				ReplacePumps: cfg.Convert.ReplacePumps,
				Logger:       log,
			})
			if err != nil {
				return err
			}

			rows := []summaryRow{
				countRow("connection nodes", result.Nodes),
				countRow("channels", result.Channels),
				countRow("cross-section locations", result.CrossSectionLocations),
				countRow("profiles", result.Profiles),
			}
			for _, typ := range sortedKeys(result.StructureCounts) {
				rows = append(rows, countRow(typ+"s", result.StructureCounts[typ]))
			}
			for _, typ := range sortedKeys(result.SkippedDefinitions) {
				rows = append(rows, summaryRow{
					key:   "skipped " + typ,
					value: fmt.Sprintf("%d (unsupported)", result.SkippedDefinitions[typ]),
				})
			}
			printSummary("Conversion finished", rows)
			return nil
		},
	}
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
