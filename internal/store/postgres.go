package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/metadata"
)

const (
	pgMaxConns          = 10
	pgHealthCheckPeriod = 30 * time.Second
	pgUniqueViolation   = "23505"
)

// Postgres stores data in PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to url, checks the connection and migrates the
// schema.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	cfg.MaxConns = pgMaxConns
	cfg.HealthCheckPeriod = pgHealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

// Entries implements Store.
func (p *Postgres) Entries() EntryRepository { return pgEntries{p} }

// Metadata implements Store.
func (p *Postgres) Metadata() MetadataRepository { return pgMetadata{p} }

// Close implements Store.
func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

type pgEntries struct{ p *Postgres }

func (r pgEntries) Add(ctx context.Context, entries ...greenops.ActivityEntry) ([]greenops.ActivityEntry, error) {
	now := r.p.now()
	out := make([]greenops.ActivityEntry, 0, len(entries))
	batch := &pgx.Batch{}
	for _, e := range entries {
		prepared, err := prepareNew(e, now)
		if err != nil {
			return nil, err
		}
		batch.Queue(`INSERT INTO activity_entries(`+entryColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`, pgEntryArgs(prepared)...)
		out = append(out, prepared)
	}

	err := pgx.BeginFunc(ctx, r.p.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return out, nil
}

func (r pgEntries) Update(ctx context.Context, e greenops.ActivityEntry) (greenops.ActivityEntry, error) {
	prev, err := r.Get(ctx, e.ID)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	updated, err := prepareUpdate(prev, e, r.p.now())
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	_, err = r.p.pool.Exec(ctx, `UPDATE activity_entries SET scope = $2, category = $3, subcategory = $4, type = $5,
description = $6, formula_detail = $7, quantity = $8, unit = $9, gas = $10, emission_factor_value = $11,
emission_factor_unit = $12, emission_factor_source = $13, uncertainty_percent = $14, status = $15,
confidence = $16, created_at = $17, updated_at = $18 WHERE id = $1`, pgEntryArgs(updated)...)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	return updated, nil
}

func (r pgEntries) Get(ctx context.Context, id string) (greenops.ActivityEntry, error) {
	row := r.p.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM activity_entries WHERE id = $1`, id)
	e, err := scanPgEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (r pgEntries) Delete(ctx context.Context, id string) error {
	tag, err := r.p.pool.Exec(ctx, `DELETE FROM activity_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r pgEntries) List(ctx context.Context, f Filter) ([]greenops.ActivityEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM activity_entries`
	var (
		where []string
		args  []any
	)
	if f.Scope != "" {
		args = append(args, string(f.Scope))
		where = append(where, "scope = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []greenops.ActivityEntry{}
	for rows.Next() {
		e, scanErr := scanPgEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r pgEntries) Purge(ctx context.Context) (int, error) {
	tag, err := r.p.pool.Exec(ctx, `DELETE FROM activity_entries`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type pgMetadata struct{ p *Postgres }

func (r pgMetadata) Append(ctx context.Context, m metadata.CalculationMetadata) error {
	assumptions, err := json.Marshal(nonNilAssumptions(m.Assumptions))
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, r.p.pool, func(tx pgx.Tx) error {
		// Serialise appends per subject for the lifetime of the transaction.
		if _, lockErr := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.SubjectID); lockErr != nil {
			return lockErr
		}
		history, qErr := queryPgHistory(ctx, tx, m.SubjectID)
		if qErr != nil {
			return qErr
		}
		if checkErr := checkAppend(history, m); checkErr != nil {
			return checkErr
		}
		_, execErr := tx.Exec(ctx, `INSERT INTO calculation_metadata(`+metadataColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			m.ID, m.SubjectID, m.Version, m.PreviousVersionID, string(m.FactorSource), m.FactorValue, m.Methodology,
			m.UncertaintyPercent, string(m.UncertaintyMethod), string(m.VerificationStatus), assumptions,
			m.Reason, m.CreatedAt, m.CreatedBy, m.Digest)
		return execErr
	})
	if isPgUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (r pgMetadata) Latest(ctx context.Context, subjectID string) (metadata.CalculationMetadata, error) {
	history, err := r.History(ctx, subjectID)
	if err != nil {
		return metadata.CalculationMetadata{}, err
	}
	return history[len(history)-1], nil
}

func (r pgMetadata) History(ctx context.Context, subjectID string) ([]metadata.CalculationMetadata, error) {
	history, err := queryPgHistory(ctx, r.p.pool, subjectID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("metadata for %s: %w", subjectID, ErrNotFound)
	}
	return history, nil
}

func (r pgMetadata) Subjects(ctx context.Context) ([]string, error) {
	rows, err := r.p.pool.Query(ctx, `SELECT DISTINCT subject_id FROM calculation_metadata ORDER BY subject_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPgHistory(ctx context.Context, q pgQueryer, subjectID string) ([]metadata.CalculationMetadata, error) {
	rows, err := q.Query(ctx,
		`SELECT `+metadataColumns+` FROM calculation_metadata WHERE subject_id = $1 ORDER BY version`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metadata.CalculationMetadata
	for rows.Next() {
		var (
			m                      metadata.CalculationMetadata
			source, method, status string
			assumptions            []byte
		)
		if err = rows.Scan(&m.ID, &m.SubjectID, &m.Version, &m.PreviousVersionID, &source, &m.FactorValue,
			&m.Methodology, &m.UncertaintyPercent, &method, &status, &assumptions, &m.Reason, &m.CreatedAt,
			&m.CreatedBy, &m.Digest); err != nil {
			return nil, err
		}
		m.FactorSource = metadata.FactorSource(source)
		m.UncertaintyMethod = metadata.UncertaintyMethod(method)
		m.VerificationStatus = metadata.VerificationStatus(status)
		m.CreatedAt = m.CreatedAt.UTC()
		if err = json.Unmarshal(assumptions, &m.Assumptions); err != nil {
			return nil, fmt.Errorf("decoding assumptions of %s: %w", m.ID, err)
		}
		if len(m.Assumptions) == 0 {
			m.Assumptions = nil
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanPgEntry(row pgx.Row) (greenops.ActivityEntry, error) {
	var (
		e                  greenops.ActivityEntry
		scope, gas, status string
	)
	err := row.Scan(&e.ID, &scope, &e.Category, &e.Subcategory, &e.Type, &e.Description, &e.FormulaDetail,
		&e.Quantity, &e.Unit, &gas, &e.EmissionFactorValue, &e.EmissionFactorUnit, &e.EmissionFactorSource,
		&e.UncertaintyPercent, &status, &e.Confidence, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	e.Scope = greenops.Scope(scope)
	e.Gas = greenops.Gas(gas)
	e.Status = greenops.EntryStatus(status)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func pgEntryArgs(e greenops.ActivityEntry) []any {
	return []any{
		e.ID, string(e.Scope), e.Category, e.Subcategory, e.Type, e.Description, e.FormulaDetail,
		e.Quantity, e.Unit, string(e.Gas), e.EmissionFactorValue, e.EmissionFactorUnit, e.EmissionFactorSource,
		e.UncertaintyPercent, string(e.Status), e.Confidence, e.CreatedAt, e.UpdatedAt,
	}
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
