// Package rtree indexes planned drill holes in an R-Tree so surveyed
// positions can be matched to the pattern. Holes are spread over X bands,
// one tree per band, and queries fan out across the bands in parallel.
package rtree

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
)

const (
	tolerance   = 0.001 // m
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialHole wraps a planned hole to implement rtreego.Spatial
type spatialHole struct {
	drillgrid.GridHole
	rect rtreego.Rect
}

func (sh *spatialHole) Bounds() rtreego.Rect {
	return sh.rect
}

// HoleIndex is a thread-safe R-Tree index over planned holes in project
// coordinates
type HoleIndex struct {
	partitions    []*rtreego.Rtree
	numPartitions int
	mu            sync.RWMutex
	itemCount     atomic.Int64

	// Band layout along X, fixed by the first indexed batch
	laidOut   bool
	minX      float64
	bandWidth float64

	// Extent of the holes actually stored in each partition
	partitionBounds []models.BoundingBox
	populated       []bool
}

// NewHoleIndex creates an index with one partition per CPU
func NewHoleIndex() *HoleIndex {
	return NewHoleIndexWithPartitions(runtime.NumCPU())
}

// NewHoleIndexWithPartitions creates an index with the given partition count
func NewHoleIndexWithPartitions(numPartitions int) *HoleIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	for i := range partitions {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}

	return &HoleIndex{
		partitions:      partitions,
		numPartitions:   numPartitions,
		partitionBounds: make([]models.BoundingBox, numPartitions),
		populated:       make([]bool, numPartitions),
	}
}

// IndexHoles adds holes to the index
func (idx *HoleIndex) IndexHoles(holes []drillgrid.GridHole) error {
	if len(holes) == 0 {
		return nil
	}

	for _, h := range holes {
		if math.IsNaN(h.X) || math.IsNaN(h.Y) || math.IsInf(h.X, 0) || math.IsInf(h.Y, 0) {
			return eris.Errorf("rtree: hole %s has non-finite coordinates", h.Name)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.laidOut {
		idx.layout(holes)
	}

	// Group holes by partition
	partitioned := make([][]*spatialHole, idx.numPartitions)
	for _, h := range holes {
		p := rtreego.Point{h.X, h.Y}
		item := &spatialHole{GridHole: h, rect: p.ToRect(tolerance)}

		pi := idx.partitionFor(h.X)
		partitioned[pi] = append(partitioned[pi], item)
		idx.extend(pi, h.X, h.Y)
	}

	// Insert into partitions in parallel
	var wg sync.WaitGroup
	for i := 0; i < idx.numPartitions; i++ {
		if len(partitioned[i]) == 0 {
			continue
		}

		wg.Add(1)
		go func(pi int, items []*spatialHole) {
			defer wg.Done()
			for _, item := range items {
				idx.partitions[pi].Insert(item)
			}
		}(i, partitioned[i])
	}
	wg.Wait()

	idx.itemCount.Add(int64(len(holes)))
	return nil
}

// QueryBox returns every hole inside the box, edges included
func (idx *HoleIndex) QueryBox(box models.BoundingBox) ([]drillgrid.GridHole, error) {
	box = normalizeBox(box)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bounds, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.BottomLeft.X, box.BottomLeft.Y},
		rtreego.Point{box.TopRight.X, box.TopRight.Y},
	)
	if err != nil {
		return nil, eris.Wrap(err, "rtree: invalid bounding box")
	}

	within := func(h drillgrid.GridHole) bool {
		return h.X >= box.BottomLeft.X && h.X <= box.TopRight.X &&
			h.Y >= box.BottomLeft.Y && h.Y <= box.TopRight.Y
	}

	return idx.search(box, bounds, within), nil
}

// QueryRadius returns every hole within radiusM metres of center
func (idx *HoleIndex) QueryRadius(center models.Location, radiusM float64) ([]drillgrid.GridHole, error) {
	if radiusM < 0 || math.IsNaN(radiusM) {
		return nil, eris.Errorf("rtree: invalid radius %v", radiusM)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	box := models.BoundingBox{
		BottomLeft: models.Location{X: center.X - radiusM, Y: center.Y - radiusM},
		TopRight:   models.Location{X: center.X + radiusM, Y: center.Y + radiusM},
	}
	bounds, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.BottomLeft.X, box.BottomLeft.Y},
		rtreego.Point{box.TopRight.X, box.TopRight.Y},
	)
	if err != nil {
		return nil, eris.Wrap(err, "rtree: invalid radius search")
	}

	within := func(h drillgrid.GridHole) bool {
		return Distance(center.X, center.Y, h.X, h.Y) <= radiusM
	}

	return idx.search(box, bounds, within), nil
}

// search runs an intersect query on every relevant partition in parallel
// and keeps the candidates accepted by keep. Caller holds the read lock.
func (idx *HoleIndex) search(box models.BoundingBox, bounds rtreego.Rect, keep func(drillgrid.GridHole) bool) []drillgrid.GridHole {
	relevant := idx.getRelevantPartitions(box)
	resultsChan := make(chan []drillgrid.GridHole, len(relevant))

	for _, pi := range relevant {
		go func(pi int) {
			results := idx.partitions[pi].SearchIntersect(bounds)

			holes := make([]drillgrid.GridHole, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialHole)
				if !ok {
					continue
				}
				if keep(item.GridHole) {
					holes = append(holes, item.GridHole)
				}
			}
			resultsChan <- holes
		}(pi)
	}

	// Merge results from all partitions
	var all []drillgrid.GridHole
	for i := 0; i < len(relevant); i++ {
		all = append(all, <-resultsChan...)
	}
	sortHoles(all)
	return all
}

// Neighbor is a hole returned by a nearest neighbour search
type Neighbor struct {
	drillgrid.GridHole
	DistanceM float64 `json:"distance_m"`
}

// NearestNeighbors returns up to n holes closest to center, nearest first
func (idx *HoleIndex) NearestNeighbors(center models.Location, n int) []Neighbor {
	if n <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	resultsChan := make(chan []Neighbor, idx.numPartitions)
	for i := 0; i < idx.numPartitions; i++ {
		go func(pi int) {
			if !idx.populated[pi] {
				resultsChan <- nil
				return
			}

			query := rtreego.Point{center.X, center.Y}
			results := idx.partitions[pi].NearestNeighbors(n, query)

			neighbors := make([]Neighbor, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialHole)
				if !ok {
					continue
				}
				neighbors = append(neighbors, Neighbor{
					GridHole:  item.GridHole,
					DistanceM: Distance(center.X, center.Y, item.X, item.Y),
				})
			}
			resultsChan <- neighbors
		}(i)
	}

	var all []Neighbor
	for i := 0; i < idx.numPartitions; i++ {
		all = append(all, <-resultsChan...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].DistanceM != all[j].DistanceM {
			return all[i].DistanceM < all[j].DistanceM
		}
		return lessHole(all[i].GridHole, all[j].GridHole)
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Count returns the number of indexed holes
func (idx *HoleIndex) Count() int64 {
	return idx.itemCount.Load()
}

// Extent returns the bounding box of every indexed hole. ok is false
// when the index is empty.
func (idx *HoleIndex) Extent() (extent models.BoundingBox, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for i, b := range idx.partitionBounds {
		if !idx.populated[i] {
			continue
		}
		if !ok {
			extent, ok = b, true
			continue
		}
		extent.BottomLeft.X = math.Min(extent.BottomLeft.X, b.BottomLeft.X)
		extent.BottomLeft.Y = math.Min(extent.BottomLeft.Y, b.BottomLeft.Y)
		extent.TopRight.X = math.Max(extent.TopRight.X, b.TopRight.X)
		extent.TopRight.Y = math.Max(extent.TopRight.Y, b.TopRight.Y)
	}
	return extent, ok
}

// Clear removes every hole and forgets the band layout
func (idx *HoleIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := 0; i < idx.numPartitions; i++ {
		idx.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
		idx.partitionBounds[i] = models.BoundingBox{}
		idx.populated[i] = false
	}
	idx.laidOut = false
	idx.minX, idx.bandWidth = 0, 0
	idx.itemCount.Store(0)
}

// all returns every indexed hole in row-major order. Caller holds a lock.
func (idx *HoleIndex) all() []drillgrid.GridHole {
	var holes []drillgrid.GridHole
	for pi := 0; pi < idx.numPartitions; pi++ {
		if !idx.populated[pi] {
			continue
		}
		b := idx.partitionBounds[pi]
		bounds, err := rtreego.NewRectFromPoints(
			rtreego.Point{b.BottomLeft.X - tolerance, b.BottomLeft.Y - tolerance},
			rtreego.Point{b.TopRight.X + tolerance, b.TopRight.Y + tolerance},
		)
		if err != nil {
			continue
		}
		for _, result := range idx.partitions[pi].SearchIntersect(bounds) {
			if item, ok := result.(*spatialHole); ok {
				holes = append(holes, item.GridHole)
			}
		}
	}
	sortHoles(holes)
	return holes
}

// layout fixes the X bands from the extent of the first batch
func (idx *HoleIndex) layout(holes []drillgrid.GridHole) {
	minX, maxX := holes[0].X, holes[0].X
	for _, h := range holes[1:] {
		minX = math.Min(minX, h.X)
		maxX = math.Max(maxX, h.X)
	}

	idx.minX = minX
	idx.bandWidth = (maxX - minX) / float64(idx.numPartitions)
	idx.laidOut = true
}

func (idx *HoleIndex) partitionFor(x float64) int {
	if idx.bandWidth <= 0 {
		return 0
	}
	pi := int((x - idx.minX) / idx.bandWidth)
	if pi >= idx.numPartitions {
		pi = idx.numPartitions - 1
	}
	if pi < 0 {
		pi = 0
	}
	return pi
}

func (idx *HoleIndex) extend(pi int, x, y float64) {
	if !idx.populated[pi] {
		idx.partitionBounds[pi] = models.BoundingBox{
			BottomLeft: models.Location{X: x, Y: y},
			TopRight:   models.Location{X: x, Y: y},
		}
		idx.populated[pi] = true
		return
	}
	b := &idx.partitionBounds[pi]
	b.BottomLeft.X = math.Min(b.BottomLeft.X, x)
	b.BottomLeft.Y = math.Min(b.BottomLeft.Y, y)
	b.TopRight.X = math.Max(b.TopRight.X, x)
	b.TopRight.Y = math.Max(b.TopRight.Y, y)
}

// normalizeBox orders the corners so BottomLeft holds the minimum
func normalizeBox(box models.BoundingBox) models.BoundingBox {
	return models.BoundingBox{
		BottomLeft: models.Location{
			X: math.Min(box.BottomLeft.X, box.TopRight.X),
			Y: math.Min(box.BottomLeft.Y, box.TopRight.Y),
		},
		TopRight: models.Location{
			X: math.Max(box.BottomLeft.X, box.TopRight.X),
			Y: math.Max(box.BottomLeft.Y, box.TopRight.Y),
		},
	}
}

// getRelevantPartitions returns the partitions whose contents intersect box
func (idx *HoleIndex) getRelevantPartitions(box models.BoundingBox) []int {
	minX := math.Min(box.BottomLeft.X, box.TopRight.X)
	maxX := math.Max(box.BottomLeft.X, box.TopRight.X)
	minY := math.Min(box.BottomLeft.Y, box.TopRight.Y)
	maxY := math.Max(box.BottomLeft.Y, box.TopRight.Y)

	var relevant []int
	for i, b := range idx.partitionBounds {
		if !idx.populated[i] {
			continue
		}
		if minX <= b.TopRight.X && maxX >= b.BottomLeft.X &&
			minY <= b.TopRight.Y && maxY >= b.BottomLeft.Y {
			relevant = append(relevant, i)
		}
	}
	return relevant
}

func lessHole(a, b drillgrid.GridHole) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	if a.Col != b.Col {
		return a.Col < b.Col
	}
	return a.Name < b.Name
}

func sortHoles(holes []drillgrid.GridHole) {
	sort.Slice(holes, func(i, j int) bool { return lessHole(holes[i], holes[j]) })
}

// Distance returns the straight-line distance in metres between two
// points in project coordinates
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
