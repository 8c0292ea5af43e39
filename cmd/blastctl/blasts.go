package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/analysis"
	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/pattern"
	"github.com/kass/go-blast-survey/pkg/survey"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
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
			a.printSuccess("Schema ready (%s)", a.cfg.Database.Driver)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var name, description, bench string

	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a hole survey CSV as a new blast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "blastctl: open %s", path)
			}
			defer f.Close()

			holes, err := survey.ParseHolesCSV(f)
			if err != nil {
				return eris.Wrapf(err, "blastctl: import %s", path)
			}

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			blast := &models.Blast{
				Name:        name,
				Description: description,
				Bench:       bench,
				Holes:       holes,
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			if _, err := s.CreateBlast(ctx, blast); err != nil {
				return err
			}

			complete := 0
			for _, h := range holes {
				if h.Complete() {
					complete++
				}
			}
			zap.L().Info("blastctl: survey imported",
				zap.String("file", path), zap.Int64("blast_id", blast.ID), zap.Int("holes", len(holes)))

			if a.jsonOut {
				return a.printJSON(map[string]any{
					"blast_id":       blast.ID,
					"name":           blast.Name,
					"holes":          len(holes),
					"complete_holes": complete,
				})
			}
			a.printSuccess("Imported blast %d %q", blast.ID, blast.Name)
			a.printStat("Holes", len(holes))
			a.printStat("Complete for powder factor", complete)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Blast name (default: file name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Blast description")
	cmd.Flags().StringVarP(&bench, "bench", "b", "", "Bench label")
	return cmd
}

func newBlastsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "blasts",
		Short: "List stored blasts",
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
			listings, err := s.ListBlasts(ctx)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(listings)
			}
			a.printTitle("Blasts")
			if len(listings) == 0 {
				a.printWarning("No blasts stored")
				return nil
			}
			for _, l := range listings {
				a.printStat(l.Name, formatListing(l.ID, l.Bench, l.HoleCount))
			}
			return nil
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <blast-id>",
		Short: "Summarize burden and spacing of a blast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			svc := analysis.NewService(s, a.cfg.Analysis.BenchContext())
			summary, err := svc.Summary(ctx, id)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(summary)
			}
			a.printTitle("Blast " + args[0] + " pattern")
			a.printStat("Holes", summary.Holes)
			a.printStat("Burden (m)", formatStats(summary.Burden))
			a.printStat("Spacing (m)", formatStats(summary.Spacing))
			return nil
		},
	}
}

func newPowderFactorCmd(a *app) *cobra.Command {
	var rockDensity, benchHeight float64

	cmd := &cobra.Command{
		Use:   "powder-factor <blast-id>",
		Short: "Average powder factor over the complete holes of a blast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(ctx); err != nil {
				return err
			}
			svc := analysis.NewService(s, a.cfg.Analysis.BenchContext())
			report, err := svc.PowderFactor(ctx, id, models.BenchContext{
				RockDensityTM3: rockDensity,
				BenchHeightM:   benchHeight,
			})
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(report)
			}
			a.printTitle("Blast " + args[0] + " powder factor")
			a.printStat("Average (kg/m³)", formatFloat(report.AvgPowderFactor))
			a.printStat("Holes used", formatRatio(report.HolesUsed, report.HolesTotal))
			a.printStat("Bench height (m)", formatFloat(report.Bench.BenchHeightM))
			if !report.HasData() {
				a.printWarning("No hole has every value needed for a powder factor")
			}
			return nil
		},
	}

	// Zero means "use the configured default"
	cmd.Flags().Float64Var(&rockDensity, "rock-density", 0, "Rock density in t/m³ (default from config, 2.7)")
	cmd.Flags().Float64Var(&benchHeight, "bench-height", 0, "Bench height in m (default from config, 10)")
	return cmd
}

func formatStats(s pattern.SummaryStats) string {
	if s.Count == 0 {
		return "no values"
	}
	return fmt.Sprintf("min %s, max %s, avg %s (%d values)",
		formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.Avg), s.Count)
}
