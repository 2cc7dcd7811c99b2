package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/metadata"
)

const entryColumns = `id, scope, category, subcategory, type, description, formula_detail, quantity, unit, gas,
emission_factor_value, emission_factor_unit, emission_factor_source, uncertainty_percent, status, confidence,
created_at, updated_at`

const metadataColumns = `id, subject_id, version, previous_version_id, factor_source, factor_value, methodology,
uncertainty_percent, uncertainty_method, verification_status, assumptions, reason, created_at, created_by, digest`

// SQLite stores data in a single SQLite file through modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path and
// migrates it. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err = migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Entries implements Store.
func (s *SQLite) Entries() EntryRepository { return sqliteEntries{s} }

// Metadata implements Store.
func (s *SQLite) Metadata() MetadataRepository { return sqliteMetadata{s} }

// Close implements Store.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteEntries struct{ s *SQLite }

func (r sqliteEntries) Add(ctx context.Context, entries ...greenops.ActivityEntry) (out []greenops.ActivityEntry, err error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.s.now()
	out = make([]greenops.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		var prepared greenops.ActivityEntry
		if prepared, err = prepareNew(e, now); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO activity_entries(`+entryColumns+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, entryArgs(prepared)...)
		if err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: entry %s already exists", ErrConflict, prepared.ID)
			}
			return nil, err
		}
		out = append(out, prepared)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r sqliteEntries) Update(ctx context.Context, e greenops.ActivityEntry) (greenops.ActivityEntry, error) {
	prev, err := r.Get(ctx, e.ID)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	updated, err := prepareUpdate(prev, e, r.s.now())
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	args := entryArgs(updated)
	_, err = r.s.db.ExecContext(ctx, `UPDATE activity_entries SET scope = ?, category = ?, subcategory = ?, type = ?,
description = ?, formula_detail = ?, quantity = ?, unit = ?, gas = ?, emission_factor_value = ?,
emission_factor_unit = ?, emission_factor_source = ?, uncertainty_percent = ?, status = ?, confidence = ?,
created_at = ?, updated_at = ? WHERE id = ?`, append(args[1:], updated.ID)...)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	return updated, nil
}

func (r sqliteEntries) Get(ctx context.Context, id string) (greenops.ActivityEntry, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM activity_entries WHERE id = ?`, id)
	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (r sqliteEntries) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM activity_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r sqliteEntries) List(ctx context.Context, f Filter) ([]greenops.ActivityEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM activity_entries`
	var (
		where []string
		args  []any
	)
	if f.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, string(f.Scope))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []greenops.ActivityEntry{}
	for rows.Next() {
		e, scanErr := scanSQLiteEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r sqliteEntries) Purge(ctx context.Context) (int, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM activity_entries`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type sqliteMetadata struct{ s *SQLite }

func (r sqliteMetadata) Append(ctx context.Context, m metadata.CalculationMetadata) (err error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	history, err := querySQLiteHistory(ctx, tx, m.SubjectID)
	if err != nil {
		return err
	}
	if err = checkAppend(history, m); err != nil {
		return err
	}
	assumptions, err := json.Marshal(nonNilAssumptions(m.Assumptions))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO calculation_metadata(`+metadataColumns+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.SubjectID, m.Version, m.PreviousVersionID, string(m.FactorSource), m.FactorValue, m.Methodology,
		nullFloat(m.UncertaintyPercent), string(m.UncertaintyMethod), string(m.VerificationStatus), string(assumptions),
		m.Reason, formatTime(m.CreatedAt), m.CreatedBy, m.Digest)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	return tx.Commit()
}

func (r sqliteMetadata) Latest(ctx context.Context, subjectID string) (metadata.CalculationMetadata, error) {
	history, err := r.History(ctx, subjectID)
	if err != nil {
		return metadata.CalculationMetadata{}, err
	}
	return history[len(history)-1], nil
}

func (r sqliteMetadata) History(ctx context.Context, subjectID string) ([]metadata.CalculationMetadata, error) {
	history, err := querySQLiteHistory(ctx, r.s.db, subjectID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("metadata for %s: %w", subjectID, ErrNotFound)
	}
	return history, nil
}

func (r sqliteMetadata) Subjects(ctx context.Context) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT DISTINCT subject_id FROM calculation_metadata ORDER BY subject_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySQLiteHistory(ctx context.Context, q queryer, subjectID string) ([]metadata.CalculationMetadata, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+metadataColumns+` FROM calculation_metadata WHERE subject_id = ? ORDER BY version`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metadata.CalculationMetadata
	for rows.Next() {
		var (
			m                                              metadata.CalculationMetadata
			source, method, status, assumptions, createdAt string
			uncertainty                                    sql.NullFloat64
		)
		if err = rows.Scan(&m.ID, &m.SubjectID, &m.Version, &m.PreviousVersionID, &source, &m.FactorValue,
			&m.Methodology, &uncertainty, &method, &status, &assumptions, &m.Reason, &createdAt,
			&m.CreatedBy, &m.Digest); err != nil {
			return nil, err
		}
		m.FactorSource = metadata.FactorSource(source)
		m.UncertaintyMethod = metadata.UncertaintyMethod(method)
		m.VerificationStatus = metadata.VerificationStatus(status)
		m.UncertaintyPercent = floatPtr(uncertainty)
		if err = json.Unmarshal([]byte(assumptions), &m.Assumptions); err != nil {
			return nil, fmt.Errorf("decoding assumptions of %s: %w", m.ID, err)
		}
		if len(m.Assumptions) == 0 {
			m.Assumptions = nil
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row scanner) (greenops.ActivityEntry, error) {
	var (
		e                    greenops.ActivityEntry
		scope, gas, status   string
		uncertainty          sql.NullFloat64
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &scope, &e.Category, &e.Subcategory, &e.Type, &e.Description, &e.FormulaDetail,
		&e.Quantity, &e.Unit, &gas, &e.EmissionFactorValue, &e.EmissionFactorUnit, &e.EmissionFactorSource,
		&uncertainty, &status, &e.Confidence, &createdAt, &updatedAt)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	e.Scope = greenops.Scope(scope)
	e.Gas = greenops.Gas(gas)
	e.Status = greenops.EntryStatus(status)
	e.UncertaintyPercent = floatPtr(uncertainty)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return greenops.ActivityEntry{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return greenops.ActivityEntry{}, err
	}
	return e, nil
}

func entryArgs(e greenops.ActivityEntry) []any {
	return []any{
		e.ID, string(e.Scope), e.Category, e.Subcategory, e.Type, e.Description, e.FormulaDetail,
		e.Quantity, e.Unit, string(e.Gas), e.EmissionFactorValue, e.EmissionFactorUnit, e.EmissionFactorSource,
		nullFloat(e.UncertaintyPercent), string(e.Status), e.Confidence, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nonNilAssumptions(a []metadata.Assumption) []metadata.Assumption {
	if a == nil {
		return []metadata.Assumption{}
	}
	return a
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
