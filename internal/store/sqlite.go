package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/unitmap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	drawing_name TEXT NOT NULL DEFAULT '',
	points_name  TEXT NOT NULL DEFAULT '',
	params       TEXT NOT NULL,
	stats        TEXT NOT NULL,
	input_points INTEGER NOT NULL,
	retained     INTEGER NOT NULL,
	polygons     INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	drawing      BLOB NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_points (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	row_num    INTEGER NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
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
	area       REAL NOT NULL,
	vertices   INTEGER NOT NULL,
	wkb        BLOB NOT NULL,
	PRIMARY KEY (run_id, polygon_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_drawing_name ON runs(drawing_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	params, stats, err := marshalRun(rec.Run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer tx.Rollback() //nolint:errcheck

	r := rec.Run
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, drawing_name, points_name, params, stats, input_points, retained, polygons, duration_ms, drawing, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DrawingName, r.PointsName, string(params), string(stats),
		r.InputPoints, r.Retained, r.Polygons, r.DurationMS, rec.Drawing, r.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", r.ID)
	}

	if err := insertRows(ctx, tx, "run_points", pointColumns, pointRows(r.ID, rec.Points)); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, "run_polygons", polygonColumns, polygonRows(r.ID, rec.Polygons)); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", table)
		}
	}
	return nil
}

const sqliteRunColumns = `id, drawing_name, points_name, params, stats, input_points, retained, polygons, duration_ms, created_at`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.DrawingName != "" {
		query += ` AND drawing_name = ?`
		args = append(args, filter.DrawingName)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetDrawing(ctx context.Context, id string) ([]byte, error) {
	var drawing []byte
	err := s.db.QueryRowContext(ctx, `SELECT drawing FROM runs WHERE id = ?`, id).Scan(&drawing)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get drawing %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get drawing %s", id)
	}
	return drawing, nil
}

func (s *SQLiteStore) GetRunPoints(ctx context.Context, id string) ([]model.RunPoint, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, row_num, x, y, group_id, group_size, category, polygon_id FROM run_points WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run points %s", id)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunPoint
	for rows.Next() {
		var p model.RunPoint
		if err := rows.Scan(&p.Index, &p.Row, &p.X, &p.Y, &p.GroupID, &p.GroupSize, &p.Category, &p.PolygonID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run point")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: run points iterate")
}

func (s *SQLiteStore) GetRunPolygons(ctx context.Context, id string) ([]model.RunPolygon, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT polygon_id, handle, layer, area, vertices, wkb FROM run_polygons WHERE run_id = ? ORDER BY polygon_id`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run polygons %s", id)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunPolygon
	for rows.Next() {
		var p model.RunPolygon
		if err := rows.Scan(&p.ID, &p.Handle, &p.Layer, &p.Area, &p.Vertices, &p.WKB); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run polygon")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: run polygons iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var params, stats string

	err := row.Scan(&r.ID, &r.DrawingName, &r.PointsName, &params, &stats,
		&r.InputPoints, &r.Retained, &r.Polygons, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRun(&r, []byte(params), []byte(stats)); err != nil {
		return nil, err
	}
	return &r, nil
}

func marshalRun(r model.Run) (params, stats []byte, err error) {
	params, err = json.Marshal(r.Params)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal params")
	}
	stats, err = json.Marshal(r.Stats)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal stats")
	}
	return params, stats, nil
}

func unmarshalRun(r *model.Run, params, stats []byte) error {
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return eris.Wrap(err, "store: unmarshal params")
	}
	if err := json.Unmarshal(stats, &r.Stats); err != nil {
		return eris.Wrap(err, "store: unmarshal stats")
	}
	return nil
}

func pointRows(runID string, pts []model.RunPoint) [][]any {
	rows := make([][]any, len(pts))
	for i, p := range pts {
		rows[i] = []any{runID, p.Index, p.Row, p.X, p.Y, p.GroupID, p.GroupSize, string(p.Category), p.PolygonID}
	}
	return rows
}

func polygonRows(runID string, polys []model.RunPolygon) [][]any {
	rows := make([][]any, len(polys))
	for i, p := range polys {
		rows[i] = []any{runID, p.ID, p.Handle, p.Layer, p.Area, p.Vertices, p.WKB}
	}
	return rows
}
