package main

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/rtree"
)

type benchOptions struct {
	QueryType string
	Queries   int
	Workers   int
	BoxSize   float64
	Radius    float64
	K         int
	Seed      int64
}

type benchResult struct {
	QueryType     string        `json:"query_type"`
	TotalQueries  int           `json:"total_queries"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
	MinDuration   time.Duration `json:"min_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
	QueriesPerSec float64       `json:"queries_per_sec"`
	TotalResults  int64         `json:"total_results"`
	AvgResults    float64       `json:"avg_results"`
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		spec      = models.GridSpec{Rows: 300, Cols: 300, Burden: 3, Spacing: 3.5}
		indexFile string
		opts      = benchOptions{QueryType: "mixed", Queries: 10000, Workers: runtime.NumCPU(), BoxSize: 15, Radius: 10, K: 8}
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark hole index queries over a generated pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx := rtree.NewHoleIndex()
			start := time.Now()
			if indexFile != "" {
				if err := idx.LoadFromFile(indexFile); err != nil {
					return err
				}
			} else if err := idx.IndexHoles(drillgrid.Holes(spec)); err != nil {
				return err
			}
			zap.L().Info("blastctl: index ready",
				zap.Int64("holes", idx.Count()), zap.Duration("took", time.Since(start)))

			if idx.Count() == 0 {
				return eris.New("blastctl: nothing to benchmark, the index is empty")
			}

			result, err := runBenchmark(idx, opts)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(result)
			}
			a.printTitle("Benchmark results")
			a.printStat("Holes indexed", idx.Count())
			a.printStat("Query type", result.QueryType)
			a.printStat("Total queries", result.TotalQueries)
			a.printStat("Total duration", result.TotalDuration)
			a.printStat("Average duration", result.AvgDuration)
			a.printStat("Min duration", result.MinDuration)
			a.printStat("Max duration", result.MaxDuration)
			a.printStat("Queries/second", formatFloat(result.QueriesPerSec))
			a.printStat("Avg results/query", formatFloat(result.AvgResults))
			a.printStat("Workers", opts.Workers)
			return nil
		},
	}

	gridFlags(cmd, &spec)
	cmd.Flags().StringVarP(&indexFile, "index", "i", "", "Benchmark an index file instead of a generated pattern")
	cmd.Flags().StringVarP(&opts.QueryType, "type", "t", opts.QueryType, "Query type: box, radius, nearest, mixed")
	cmd.Flags().IntVarP(&opts.Queries, "queries", "q", opts.Queries, "Number of queries to run")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", opts.Workers, "Number of worker goroutines")
	cmd.Flags().Float64Var(&opts.BoxSize, "box-size", opts.BoxSize, "Box side in m")
	cmd.Flags().Float64Var(&opts.Radius, "radius", opts.Radius, "Search radius in m")
	cmd.Flags().IntVarP(&opts.K, "neighbors", "k", opts.K, "Neighbours per nearest query")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "Random seed")
	return cmd
}

// runBenchmark fires random queries at the index from a worker pool.
// Query points are drawn from the extent of the indexed holes.
func runBenchmark(idx *rtree.HoleIndex, opts benchOptions) (benchResult, error) {
	switch opts.QueryType {
	case "box", "radius", "nearest", "mixed":
	default:
		return benchResult{}, eris.Errorf("blastctl: unknown query type %q", opts.QueryType)
	}
	if opts.Queries <= 0 {
		return benchResult{}, eris.New("blastctl: queries must be positive")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	extent, ok := idx.Extent()
	if !ok {
		return benchResult{}, eris.New("blastctl: index is empty")
	}

	var (
		totalResults atomic.Int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		sumDuration  time.Duration
		completed    int
		mu           sync.Mutex
	)

	start := time.Now()
	queryCh := make(chan int, opts.Queries)
	var wg sync.WaitGroup

	wg.Add(opts.Workers)
	for w := 0; w < opts.Workers; w++ {
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(opts.Seed + int64(worker)))

			for i := range queryCh {
				center := models.Location{
					X: extent.BottomLeft.X + r.Float64()*(extent.TopRight.X-extent.BottomLeft.X),
					Y: extent.BottomLeft.Y + r.Float64()*(extent.TopRight.Y-extent.BottomLeft.Y),
				}

				queryType := opts.QueryType
				if queryType == "mixed" {
					queryType = [...]string{"box", "radius", "nearest"}[i%3]
				}

				queryStart := time.Now()
				n, err := runQuery(idx, queryType, center, opts)
				took := time.Since(queryStart)
				if err != nil {
					zap.L().Debug("blastctl: query failed", zap.Error(err))
					continue
				}
				totalResults.Add(int64(n))

				mu.Lock()
				completed++
				sumDuration += took
				if took < minDuration {
					minDuration = took
				}
				if took > maxDuration {
					maxDuration = took
				}
				mu.Unlock()
			}
		}(w)
	}

	for i := 0; i < opts.Queries; i++ {
		queryCh <- i
	}
	close(queryCh)
	wg.Wait()
	total := time.Since(start)

	if completed == 0 {
		return benchResult{}, eris.New("blastctl: every query failed")
	}

	return benchResult{
		QueryType:     opts.QueryType,
		TotalQueries:  completed,
		TotalDuration: total,
		AvgDuration:   sumDuration / time.Duration(completed),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		QueriesPerSec: float64(completed) / total.Seconds(),
		TotalResults:  totalResults.Load(),
		AvgResults:    float64(totalResults.Load()) / float64(completed),
	}, nil
}

func runQuery(idx *rtree.HoleIndex, queryType string, center models.Location, opts benchOptions) (int, error) {
	switch queryType {
	case "box":
		half := opts.BoxSize / 2
		holes, err := idx.QueryBox(models.BoundingBox{
			BottomLeft: models.Location{X: center.X - half, Y: center.Y - half},
			TopRight:   models.Location{X: center.X + half, Y: center.Y + half},
		})
		return len(holes), err
	case "radius":
		holes, err := idx.QueryRadius(center, opts.Radius)
		return len(holes), err
	default:
		return len(idx.NearestNeighbors(center, opts.K)), nil
	}
}
