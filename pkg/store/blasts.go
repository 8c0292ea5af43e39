package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/models"
)

// CreateBlast inserts the blast and all of its holes in one transaction.
// It sets ID and CreatedAt on b and returns the new ID.
func (s *Store) CreateBlast(ctx context.Context, b *models.Blast) (int64, error) {
	if b.Name == "" {
		return 0, eris.New("store: blast name is required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()

	id, err := s.insertReturningID(ctx, tx,
		`INSERT INTO blasts (name, description, bench, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		b.Name, nullString(b.Description), nullString(b.Bench), b.CreatedAt)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert blast")
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO holes (blast_id, hole_id, burden, spacing, diameter_mm, hole_depth_m,
			stemming_m, explosive_density_kg_m3, explosive_column_m)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare hole insert")
	}
	defer stmt.Close()

	for _, h := range b.Holes {
		_, err := stmt.ExecContext(ctx, id, h.HoleID,
			nullFloat(h.Burden), nullFloat(h.Spacing), nullFloat(h.DiameterMM),
			nullFloat(h.HoleDepthM), nullFloat(h.StemmingM),
			nullFloat(h.ExplosiveDensityKgM3), nullFloat(h.ExplosiveColumnM))
		if err != nil {
			return 0, eris.Wrapf(err, "store: insert hole %q", h.HoleID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit blast")
	}

	b.ID = id
	zap.L().Info("store: blast created",
		zap.Int64("blast_id", id), zap.String("name", b.Name), zap.Int("holes", len(b.Holes)))
	return id, nil
}

// GetBlast returns the blast with its holes in insertion order
func (s *Store) GetBlast(ctx context.Context, id int64) (*models.Blast, error) {
	var (
		b                  models.Blast
		description, bench sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, name, description, bench, created_at FROM blasts WHERE id = ?`), id,
	).Scan(&b.ID, &b.Name, &description, &bench, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "store: blast %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get blast %d", id)
	}
	b.Description = description.String
	b.Bench = bench.String

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT hole_id, burden, spacing, diameter_mm, hole_depth_m,
			stemming_m, explosive_density_kg_m3, explosive_column_m
		FROM holes WHERE blast_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query holes of blast %d", id)
	}
	defer rows.Close()

	b.Holes = []models.Hole{}
	for rows.Next() {
		var (
			h                                   models.Hole
			burden, spacing, diameter, depth    sql.NullFloat64
			stemming, explosiveDensity, columnM sql.NullFloat64
		)
		if err := rows.Scan(&h.HoleID, &burden, &spacing, &diameter, &depth,
			&stemming, &explosiveDensity, &columnM); err != nil {
			return nil, eris.Wrap(err, "store: scan hole")
		}
		h.Burden = floatPtr(burden)
		h.Spacing = floatPtr(spacing)
		h.DiameterMM = floatPtr(diameter)
		h.HoleDepthM = floatPtr(depth)
		h.StemmingM = floatPtr(stemming)
		h.ExplosiveDensityKgM3 = floatPtr(explosiveDensity)
		h.ExplosiveColumnM = floatPtr(columnM)
		b.Holes = append(b.Holes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate holes")
	}

	return &b, nil
}

// BlastListing is a blast header with its hole count
type BlastListing struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Bench     string    `json:"bench,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	HoleCount int       `json:"hole_count"`
}

// ListBlasts returns every blast, newest first, without hole data
func (s *Store) ListBlasts(ctx context.Context) ([]BlastListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.bench, b.created_at,
			(SELECT COUNT(*) FROM holes h WHERE h.blast_id = b.id)
		FROM blasts b
		ORDER BY b.id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list blasts")
	}
	defer rows.Close()

	listings := []BlastListing{}
	for rows.Next() {
		var (
			l     BlastListing
			bench sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &bench, &l.CreatedAt, &l.HoleCount); err != nil {
			return nil, eris.Wrap(err, "store: scan blast")
		}
		l.Bench = bench.String
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate blasts")
	}
	return listings, nil
}
