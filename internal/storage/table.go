package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
)

// Fixed width so that TEXT ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestamp scans the TEXT timestamps written by this package.
type timestamp struct{ t *time.Time }

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		parsed, err := time.Parse(timeLayout, v)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", v, err)
		}
		*ts.t = parsed.UTC()
		return nil
	case nil:
		*ts.t = time.Time{}
		return nil
	}
	return fmt.Errorf("scan timestamp from %T", src)
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// table maps one record type onto one SQL table. fields returns pointers to
// the record's domain columns in the same order as columns; they serve both as
// Scan destinations and as insert arguments.
type table[T crm.Entity, P crm.Stamped[T]] struct {
	db      *sql.DB
	now     func() time.Time
	name    string
	columns []string
	fields  func(P) []any

	statusCol, clientCol, loanCol string
}

func (t *table[T, P]) selectList() string {
	return "id, created_at, updated_at, " + strings.Join(t.columns, ", ")
}

func (t *table[T, P]) scan(row interface{ Scan(...any) error }) (T, error) {
	var v T
	p := P(&v)
	m := p.Meta()
	dest := append([]any{&m.ID, timestamp{&m.CreatedAt}, timestamp{&m.UpdatedAt}}, t.fields(p)...)
	if err := row.Scan(dest...); err != nil {
		return v, err
	}
	return v, nil
}

func (t *table[T, P]) List(ctx context.Context, f crm.Filter) ([]T, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range [][2]string{{t.statusCol, f.Status}, {t.clientCol, f.ClientID}, {t.loanCol, f.LoanID}} {
		if c[0] != "" && c[1] != "" {
			where = append(where, c[0]+" = ?")
			args = append(args, c[1])
		}
	}
	q := "SELECT " + t.selectList() + " FROM " + t.name
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *table[T, P]) Get(ctx context.Context, id string) (T, error) {
	row := t.db.QueryRowContext(ctx, "SELECT "+t.selectList()+" FROM "+t.name+" WHERE id = ?", id)
	v, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("get %s %s: %w", t.name, id, err)
	}
	return v, nil
}

func (t *table[T, P]) Create(ctx context.Context, v *T) error {
	if err := (*v).Validate(); err != nil {
		return err
	}
	p := P(v)
	m := p.Meta()
	m.Touch(t.now())

	cols := append([]string{"id", "created_at", "updated_at"}, t.columns...)
	args := append([]any{m.ID, formatTime(m.CreatedAt), formatTime(m.UpdatedAt)}, values(t.fields(p))...)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", t.name, m.ID, core.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

func (t *table[T, P]) Update(ctx context.Context, v *T) error {
	if err := (*v).Validate(); err != nil {
		return err
	}
	p := P(v)
	m := p.Meta()
	m.UpdatedAt = t.now()

	sets := make([]string, 0, len(t.columns)+1)
	sets = append(sets, "updated_at = ?")
	for _, c := range t.columns {
		sets = append(sets, c+" = ?")
	}
	args := append([]any{formatTime(m.UpdatedAt)}, values(t.fields(p))...)
	args = append(args, m.ID)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? RETURNING created_at", t.name, strings.Join(sets, ", "))

	err := t.db.QueryRowContext(ctx, q, args...).Scan(timestamp{&m.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", t.name, m.ID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s %s: %w", t.name, m.ID, err)
	}
	return nil
}

func (t *table[T, P]) Delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.name, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
	}
	return nil
}

func (t *table[T, P]) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// values dereferences field pointers for use as query arguments.
func values(ptrs []any) []any {
	out := make([]any, len(ptrs))
	for i, p := range ptrs {
		out[i] = reflect.ValueOf(p).Elem().Interface()
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
