package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/db"
	"github.com/sells-group/unitmap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	drawing_name TEXT NOT NULL DEFAULT '',
	points_name  TEXT NOT NULL DEFAULT '',
	params       JSONB NOT NULL,
	stats        JSONB NOT NULL,
	input_points INTEGER NOT NULL,
	retained     INTEGER NOT NULL,
	polygons     INTEGER NOT NULL,
	duration_ms  BIGINT NOT NULL,
	drawing      BYTEA NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_points (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	row_num    INTEGER NOT NULL,
	x          DOUBLE PRECISION NOT NULL,
	y          DOUBLE PRECISION NOT NULL,
	group_id   INTEGER NOT NULL,
	group_size INTEGER NOT NULL,
	category   TEXT NOT NULL,
	polygon_id INTEGER NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS run_polygons (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	polygon_id INTEGER NOT NULL,
	handle     TEXT NOT NULL,
	layer      TEXT NOT NULL,
	area       DOUBLE PRECISION NOT NULL,
	vertices   INTEGER NOT NULL,
	wkb        BYTEA NOT NULL,
	PRIMARY KEY (run_id, polygon_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_drawing_name ON runs(drawing_name);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun writes the run row, then bulk-copies its points and polygons, in
// one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	params, stats, err := marshalRun(rec.Run)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	r := rec.Run
	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, drawing_name, points_name, params, stats, input_points, retained, polygons, duration_ms, drawing, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.DrawingName, r.PointsName, params, stats,
		r.InputPoints, r.Retained, r.Polygons, r.DurationMS, rec.Drawing, r.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", r.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, "run_points", pointColumns, pointRows(r.ID, rec.Points)); err != nil {
		return eris.Wrap(err, "postgres: copy run points")
	}
	if _, err := db.CopyFrom(ctx, tx, "run_polygons", polygonColumns, polygonRows(r.ID, rec.Polygons)); err != nil {
		return eris.Wrap(err, "postgres: copy run polygons")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save run")
}

const postgresRunColumns = `id, drawing_name, points_name, params, stats, input_points, retained, polygons, duration_ms, created_at`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.DrawingName != "" {
		query += fmt.Sprintf(` AND drawing_name = $%d`, argIdx)
		args = append(args, filter.DrawingName)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetDrawing(ctx context.Context, id string) ([]byte, error) {
	var drawing []byte
	err := s.pool.QueryRow(ctx, `SELECT drawing FROM runs WHERE id = $1`, id).Scan(&drawing)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get drawing %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get drawing %s", id)
	}
	return drawing, nil
}

func (s *PostgresStore) GetRunPoints(ctx context.Context, id string) ([]model.RunPoint, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT idx, row_num, x, y, group_id, group_size, category, polygon_id FROM run_points WHERE run_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run points %s", id)
	}
	defer rows.Close()

	var out []model.RunPoint
	for rows.Next() {
		var p model.RunPoint
		var category string
		if err := rows.Scan(&p.Index, &p.Row, &p.X, &p.Y, &p.GroupID, &p.GroupSize, &category, &p.PolygonID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run point")
		}
		p.Category = model.Category(category)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: run points iterate")
}

func (s *PostgresStore) GetRunPolygons(ctx context.Context, id string) ([]model.RunPolygon, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT polygon_id, handle, layer, area, vertices, wkb FROM run_polygons WHERE run_id = $1 ORDER BY polygon_id`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run polygons %s", id)
	}
	defer rows.Close()

	var out []model.RunPolygon
	for rows.Next() {
		var p model.RunPolygon
		if err := rows.Scan(&p.ID, &p.Handle, &p.Layer, &p.Area, &p.Vertices, &p.WKB); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run polygon")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: run polygons iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var params, stats []byte

	err := row.Scan(&r.ID, &r.DrawingName, &r.PointsName, &params, &stats,
		&r.InputPoints, &r.Retained, &r.Polygons, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRun(&r, params, stats); err != nil {
		return nil, err
	}
	return &r, nil
}
