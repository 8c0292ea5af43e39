package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
)

// CreateDrillPlan generates the plan's grid, stores both, and sets ID,
// CreatedAt and GridGeoJSON on p
func (s *Store) CreateDrillPlan(ctx context.Context, p *models.DrillPlan) (int64, error) {
	if p.Name == "" {
		return 0, eris.New("store: drill plan name is required")
	}
	if err := drillgrid.Validate(p.Grid); err != nil {
		return 0, eris.Wrap(err, "store: drill plan")
	}

	grid, err := drillgrid.Marshal(p.Grid)
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	id, err := s.insertReturningID(ctx, s.db, `
		INSERT INTO drill_plans (name, description, bench, burden, spacing, rows, cols,
			origin_x, origin_y, grid_geojson, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Name, nullString(p.Description), nullString(p.Bench),
		p.Grid.Burden, p.Grid.Spacing, p.Grid.Rows, p.Grid.Cols,
		p.Grid.OriginX, p.Grid.OriginY, string(grid), p.CreatedAt)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert drill plan")
	}

	p.ID = id
	p.GridGeoJSON = grid
	zap.L().Info("store: drill plan created",
		zap.Int64("plan_id", id), zap.String("name", p.Name),
		zap.Int("holes", p.Grid.Rows*p.Grid.Cols))
	return id, nil
}

const planColumns = `id, name, description, bench, burden, spacing, rows, cols,
	origin_x, origin_y, grid_geojson, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.DrillPlan, error) {
	var (
		p                  models.DrillPlan
		description, bench sql.NullString
		grid               sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &description, &bench,
		&p.Grid.Burden, &p.Grid.Spacing, &p.Grid.Rows, &p.Grid.Cols,
		&p.Grid.OriginX, &p.Grid.OriginY, &grid, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Bench = bench.String
	if grid.Valid {
		p.GridGeoJSON = []byte(grid.String)
	}
	return &p, nil
}

// GetDrillPlan returns one drill plan with its stored grid
func (s *Store) GetDrillPlan(ctx context.Context, id int64) (*models.DrillPlan, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+planColumns+` FROM drill_plans WHERE id = ?`), id)

	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "store: drill plan %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get drill plan %d", id)
	}
	return p, nil
}

// ListDrillPlans returns every drill plan in creation order
func (s *Store) ListDrillPlans(ctx context.Context) ([]*models.DrillPlan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM drill_plans ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list drill plans")
	}
	defer rows.Close()

	plans := []*models.DrillPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan drill plan")
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate drill plans")
	}
	return plans, nil
}
