package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

const runColumns = `id::text, status, instance, params, result, cost, error, created_at, started_at, finished_at`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the runs table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CreateRun(ctx context.Context, instance string, params json.RawMessage) (Run, error) {
	id, err := newRunID()
	if err != nil {
		return Run{}, err
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO runs (id, status, instance, params) VALUES ($1,$2,$3,$4) RETURNING `+runColumns,
		id, StatusQueued, instance, nullJSON(params))
	return scanRun(row)
}

func (p *Postgres) StartRun(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, started_at=now() WHERE id=$1 AND status=$3`,
		id, StatusRunning, StatusQueued)
	if err != nil {
		return err
	}
	return p.checkTransition(ctx, res, id, StatusRunning)
}

func (p *Postgres) FinishRun(ctx context.Context, id string, cost float64, result json.RawMessage) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, cost=$3, result=$4, finished_at=now() WHERE id=$1 AND status IN ($5,$6)`,
		id, StatusSucceeded, cost, nullJSON(result), StatusQueued, StatusRunning)
	if err != nil {
		return err
	}
	return p.checkTransition(ctx, res, id, StatusSucceeded)
}

func (p *Postgres) FailRun(ctx context.Context, id string, status RunStatus, msg string) error {
	if status != StatusFailed && status != StatusCancelled {
		return fmt.Errorf("%w: cannot fail into %s", ErrInvalidStatus, status)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, error=$3, finished_at=now() WHERE id=$1 AND status IN ($4,$5)`,
		id, status, msg, StatusQueued, StatusRunning)
	if err != nil {
		return err
	}
	return p.checkTransition(ctx, res, id, status)
}

// checkTransition turns a zero-row update into ErrNotFound or
// ErrInvalidStatus depending on whether the run exists.
func (p *Postgres) checkTransition(ctx context.Context, res sql.Result, id string, to RunStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	r, err := p.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, to)
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, status RunStatus, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id::text > $2) ORDER BY id LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, string(status), cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r              Run
		params, result []byte
		cost           sql.NullFloat64
		started, ended sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Status, &r.Instance, &params, &result, &cost, &r.Error, &r.CreatedAt, &started, &ended); err != nil {
		return Run{}, err
	}
	r.Params, r.Result = params, result
	if cost.Valid {
		r.Cost = &cost.Float64
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if ended.Valid {
		r.FinishedAt = &ended.Time
	}
	return r, nil
}

// nullJSON maps empty payloads to SQL NULL.
func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
