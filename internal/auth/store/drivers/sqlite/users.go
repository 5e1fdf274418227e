package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
)

// usersRepo queries arbitrary user tables. Every table and column name is
// checked with store.ValidIdentifier before it reaches SQL.
type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) FindByCredentialFields(
	ctx context.Context,
	values map[string]string,
	fields []string,
	table string,
) (store.Record, error) {
	if err := checkIdentifiers(append([]string{table}, fields...)...); err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	for _, f := range fields {
		v, ok := values[f]
		if !ok || v == "" {
			continue
		}
		conds = append(conds, quote(f)+" = ?")
		args = append(args, v)
	}
	if len(conds) == 0 {
		return nil, store.ErrNotFound
	}

	q := `SELECT * FROM ` + quote(table) + ` WHERE ` + strings.Join(conds, " OR ") + ` LIMIT 1`
	return r.queryOne(ctx, q, args...)
}

func (r *usersRepo) FindByID(ctx context.Context, id, table, idField string) (store.Record, error) {
	if err := checkIdentifiers(table, idField); err != nil {
		return nil, err
	}
	q := `SELECT * FROM ` + quote(table) + ` WHERE ` + quote(idField) + ` = ? LIMIT 1`
	return r.queryOne(ctx, q, id)
}

func (r *usersRepo) Insert(ctx context.Context, table string, rec store.Record) error {
	if len(rec) == 0 {
		return fmt.Errorf("insert into %s: no columns", table)
	}

	cols := sortedKeys(rec)
	if err := checkIdentifiers(append([]string{table}, cols...)...); err != nil {
		return err
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
		args[i] = rec[c]
	}

	q := `INSERT INTO ` + quote(table) + ` (` + strings.Join(quoted, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `)`
	_, err := r.db.ExecContext(ctx, q, args...)
	return mapConstraint(err)
}

func (r *usersRepo) Update(ctx context.Context, table, idField, id string, set store.Record) error {
	if len(set) == 0 {
		return nil
	}

	cols := sortedKeys(set)
	if err := checkIdentifiers(append([]string{table, idField}, cols...)...); err != nil {
		return err
	}

	assigns := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		assigns[i] = quote(c) + " = ?"
		args = append(args, set[c])
	}
	args = append(args, id)

	q := `UPDATE ` + quote(table) + ` SET ` + strings.Join(assigns, ", ") + ` WHERE ` + quote(idField) + ` = ?`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) queryOne(ctx context.Context, q string, args ...any) (store.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(store.Record, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			rec[c] = string(b)
			continue
		}
		rec[c] = vals[i]
	}
	return rec, nil
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !store.ValidIdentifier(n) {
			return fmt.Errorf("%w: %q", store.ErrIdentifier, n)
		}
	}
	return nil
}

func quote(ident string) string { return `"` + ident + `"` }

func sortedKeys(r store.Record) []string {
	return slices.Sorted(maps.Keys(r))
}
