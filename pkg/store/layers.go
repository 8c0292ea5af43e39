package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/models"
)

// CreateMapLayer checks the layer's GeoJSON, stores it compacted and sets
// ID, CreatedAt and a missing LayerType on l
func (s *Store) CreateMapLayer(ctx context.Context, l *models.MapLayer) (int64, error) {
	if l.Name == "" {
		return 0, eris.New("store: map layer name is required")
	}
	features, err := checkGeoJSON(l.GeoJSON)
	if err != nil {
		return 0, eris.Wrapf(err, "store: map layer %q", l.Name)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, l.GeoJSON); err != nil {
		return 0, eris.Wrap(err, "store: compact geojson")
	}
	if l.LayerType == "" {
		l.LayerType = models.DefaultLayerType
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	id, err := s.insertReturningID(ctx, s.db, `
		INSERT INTO map_layers (name, layer_type, geojson, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`,
		l.Name, l.LayerType, compact.String(), l.CreatedAt)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert map layer")
	}

	l.ID = id
	l.GeoJSON = json.RawMessage(compact.Bytes())
	zap.L().Info("store: map layer created",
		zap.Int64("layer_id", id), zap.String("name", l.Name),
		zap.String("type", l.LayerType), zap.Int("features", features))
	return id, nil
}

// checkGeoJSON decodes a FeatureCollection, Feature or bare geometry and
// returns how many features it holds
func checkGeoJSON(data []byte) (int, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, eris.Wrap(err, "decode geojson")
	}

	switch head.Type {
	case "":
		return 0, eris.New("geojson object has no type")
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return 0, eris.Wrap(err, "decode feature collection")
		}
		return len(fc.Features), nil
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return 0, eris.Wrap(err, "decode feature")
		}
		return 1, nil
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return 0, eris.Wrapf(err, "decode %s geometry", head.Type)
		}
		return 1, nil
	}
}

const layerColumns = `id, name, layer_type, geojson, created_at`

func scanLayer(row rowScanner) (*models.MapLayer, error) {
	var (
		l    models.MapLayer
		data string
	)
	if err := row.Scan(&l.ID, &l.Name, &l.LayerType, &data, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.GeoJSON = json.RawMessage(data)
	return &l, nil
}

// GetMapLayer returns one map layer with its GeoJSON
func (s *Store) GetMapLayer(ctx context.Context, id int64) (*models.MapLayer, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+layerColumns+` FROM map_layers WHERE id = ?`), id)

	l, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "store: map layer %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get map layer %d", id)
	}
	return l, nil
}

// ListMapLayers returns every map layer in creation order
func (s *Store) ListMapLayers(ctx context.Context) ([]*models.MapLayer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+layerColumns+` FROM map_layers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list map layers")
	}
	defer rows.Close()

	layers := []*models.MapLayer{}
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan map layer")
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate map layers")
	}
	return layers, nil
}
