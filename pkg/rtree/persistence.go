package rtree

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
)

// IndexData is the serializable form of the hole index
type IndexData struct {
	Holes []drillgrid.GridHole `json:"holes"`
	Count int64                `json:"count"`
}

// SaveToFile writes a snapshot of the indexed holes to a gob file
func (idx *HoleIndex) SaveToFile(filename string) error {
	idx.mu.RLock()
	data := IndexData{
		Holes: idx.all(),
		Count: idx.itemCount.Load(),
	}
	idx.mu.RUnlock()

	file, err := os.Create(filename)
	if err != nil {
		return eris.Wrapf(err, "rtree: create %s", filename)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return eris.Wrap(err, "rtree: encode snapshot")
	}
	return nil
}

// LoadFromFile replaces the index contents with a snapshot from SaveToFile
func (idx *HoleIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return eris.Wrapf(err, "rtree: open %s", filename)
	}
	defer file.Close()

	var data IndexData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return eris.Wrap(err, "rtree: decode snapshot")
	}
	if int64(len(data.Holes)) != data.Count {
		return eris.Errorf("rtree: snapshot holds %d holes, header says %d", len(data.Holes), data.Count)
	}

	idx.Clear()
	if err := idx.IndexHoles(data.Holes); err != nil {
		return eris.Wrap(err, "rtree: rebuild index")
	}
	return nil
}
