package main

import (
	"github.com/spf13/cobra"

	"github.com/waterschap/hydroconv/pkg/compact"
	"github.com/waterschap/hydroconv/pkg/config"
	"github.com/waterschap/hydroconv/pkg/dflowfm"
)

func newCheckCmd() *cobra.Command {
	var topology bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report what the source contains and what the converter supports",
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

			var rows []summaryRow
			if mdu.StructureFile != "" {
				structures, err := dflowfm.ReadStructures(mdu.Resolve(mdu.StructureFile))
				if err != nil {
					return err
				}
				dflowfm.CheckStructures(structures, log)
				counts := dflowfm.CountStructureTypes(structures)
				for _, typ := range sortedKeys(counts) {
					rows = append(rows, countRow(typ+"s", counts[typ]))
				}
			}
			if mdu.CrossDefFile != "" {
				defs, err := dflowfm.ReadCrossSectionDefinitions(mdu.Resolve(mdu.CrossDefFile))
				if err != nil {
					return err
				}
				counts := dflowfm.CountCrossSectionTypes(defs)
				for _, typ := range sortedKeys(counts) {
					rows = append(rows, countRow("crsdef "+typ, counts[typ]))
				}
			}

			if topology {
				s, err := openStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer s.Close()

				topo, err := compact.BuildTopology(s)
				if err != nil {
					return err
				}
				rows = append(rows,
					countRow("connection nodes", topo.NodeCount()),
					countRow("connected components", topo.ComponentCount()),
				)
			}

			printSummary("Source check", rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&topology, "topology", false, "also report the target network's component count")
	return cmd
}
