package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/rtree"
)

// gridFlags binds the pattern layout flags. The current values of spec
// are the flag defaults.
func gridFlags(cmd *cobra.Command, spec *models.GridSpec) {
	cmd.Flags().IntVar(&spec.Rows, "rows", spec.Rows, "Number of rows")
	cmd.Flags().IntVar(&spec.Cols, "cols", spec.Cols, "Number of holes per row")
	cmd.Flags().Float64Var(&spec.Burden, "burden", spec.Burden, "Row-to-row distance in m")
	cmd.Flags().Float64Var(&spec.Spacing, "spacing", spec.Spacing, "Hole-to-hole distance along a row in m")
	cmd.Flags().Float64Var(&spec.OriginX, "origin-x", spec.OriginX, "X of the first hole")
	cmd.Flags().Float64Var(&spec.OriginY, "origin-y", spec.OriginY, "Y of the first hole")
}

func newPlanCmd(a *app) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage stored drill plans",
	}
	planCmd.AddCommand(newPlanCreateCmd(a), newPlanListCmd(a), newPlanIndexCmd(a))
	return planCmd
}

func newPlanCreateCmd(a *app) *cobra.Command {
	var plan models.DrillPlan

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lay out and store a rectangular drill plan",
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
			if _, err := s.CreateDrillPlan(ctx, &plan); err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(plan)
			}
			a.printSuccess("Created drill plan %d %q", plan.ID, plan.Name)
			a.printStat("Holes", plan.Grid.Rows*plan.Grid.Cols)
			a.printStat("Pattern", fmt.Sprintf("%d x %d at %s x %s m",
				plan.Grid.Rows, plan.Grid.Cols, formatFloat(plan.Grid.Burden), formatFloat(plan.Grid.Spacing)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&plan.Name, "name", "n", "", "Plan name")
	cmd.Flags().StringVarP(&plan.Description, "description", "d", "", "Plan description")
	cmd.Flags().StringVarP(&plan.Bench, "bench", "b", "", "Bench label")
	gridFlags(cmd, &plan.Grid)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPlanListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored drill plans",
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
			plans, err := s.ListDrillPlans(ctx)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(plans)
			}
			a.printTitle("Drill plans")
			if len(plans) == 0 {
				a.printWarning("No drill plans stored")
				return nil
			}
			for _, p := range plans {
				a.printStat(p.Name, fmt.Sprintf("#%d %dx%d, burden %s, spacing %s",
					p.ID, p.Grid.Rows, p.Grid.Cols, formatFloat(p.Grid.Burden), formatFloat(p.Grid.Spacing)))
			}
			return nil
		},
	}
}

func newPlanIndexCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "index <plan-id>",
		Short: "Build a spatial index of a plan's holes and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			idx, err := a.planIndex(cmd, id)
			if err != nil {
				return err
			}
			if err := idx.SaveToFile(output); err != nil {
				return err
			}
			a.printSuccess("Indexed %d holes into %s", idx.Count(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "holes.gob", "Index file path")
	return cmd
}

// planIndex loads a stored plan and indexes its holes
func (a *app) planIndex(cmd *cobra.Command, planID int64) (*rtree.HoleIndex, error) {
	ctx := cmd.Context()
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	plan, err := s.GetDrillPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	var holes []drillgrid.GridHole
	if len(plan.GridGeoJSON) > 0 {
		holes, err = drillgrid.Decode(plan.GridGeoJSON)
		if err != nil {
			return nil, err
		}
	} else {
		holes = drillgrid.Holes(plan.Grid)
	}

	idx := rtree.NewHoleIndex()
	if err := idx.IndexHoles(holes); err != nil {
		return nil, err
	}
	return idx, nil
}

func newGridCmd(a *app) *cobra.Command {
	var (
		spec   models.GridSpec
		output string
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print a drill grid as GeoJSON without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := drillgrid.Marshal(spec)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := fmt.Fprintln(a.out, string(data))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return eris.Wrapf(err, "blastctl: write %s", output)
			}
			a.printSuccess("Wrote %d holes to %s", max(spec.Rows, 0)*max(spec.Cols, 0), output)
			return nil
		},
	}

	gridFlags(cmd, &spec)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newNearestCmd(a *app) *cobra.Command {
	var (
		planID    int64
		indexFile string
		x, y      float64
		k         int
		radius    float64
	)

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the planned holes closest to a point",
		Long: `Find the planned holes closest to a point. Holes come from a stored plan
(--plan) or from an index file written by "plan index" (--index).
With --radius every hole within that distance is listed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				idx *rtree.HoleIndex
				err error
			)
			switch {
			case indexFile != "":
				idx = rtree.NewHoleIndex()
				err = idx.LoadFromFile(indexFile)
			case planID > 0:
				idx, err = a.planIndex(cmd, planID)
			default:
				return eris.New("blastctl: one of --plan or --index is required")
			}
			if err != nil {
				return err
			}

			center := models.Location{X: x, Y: y}
			var neighbors []rtree.Neighbor
			if cmd.Flags().Changed("radius") {
				holes, err := idx.QueryRadius(center, radius)
				if err != nil {
					return err
				}
				for _, h := range holes {
					neighbors = append(neighbors, rtree.Neighbor{
						GridHole:  h,
						DistanceM: rtree.Distance(x, y, h.X, h.Y),
					})
				}
				sort.SliceStable(neighbors, func(i, j int) bool {
					return neighbors[i].DistanceM < neighbors[j].DistanceM
				})
			} else {
				neighbors = idx.NearestNeighbors(center, k)
			}

			if a.jsonOut {
				if neighbors == nil {
					neighbors = []rtree.Neighbor{}
				}
				return a.printJSON(neighbors)
			}
			if len(neighbors) == 0 {
				a.printWarning("No holes found")
				return nil
			}
			for _, n := range neighbors {
				fmt.Fprintf(a.out, "%s %s\n", n.Name, formatFloat(n.DistanceM))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&planID, "plan", 0, "Stored drill plan id")
	cmd.Flags().StringVar(&indexFile, "index", "", "Index file written by plan index")
	cmd.Flags().Float64VarP(&x, "x", "x", 0, "Query point X")
	cmd.Flags().Float64VarP(&y, "y", "y", 0, "Query point Y")
	cmd.Flags().IntVarP(&k, "neighbors", "k", 5, "Number of holes to return")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "Search radius in m")
	return cmd
}
