package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
)

type tokensRepo struct {
	db  *sql.DB
	now func() time.Time
}

const tokenColumns = `token, principal_id, guard, type, session_id, created_at, expires_at, metadata`

func (r *tokensRepo) Store(ctx context.Context, rec domain.TokenRecord) (domain.TokenRecord, error) {
	if rec.Token == "" {
		return domain.TokenRecord{}, fmt.Errorf("store token: empty token")
	}
	if !rec.Type.Valid() {
		return domain.TokenRecord{}, fmt.Errorf("store token: invalid type %q", rec.Type)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return domain.TokenRecord{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			principal_id = excluded.principal_id,
			guard        = excluded.guard,
			type         = excluded.type,
			session_id   = excluded.session_id,
			created_at   = excluded.created_at,
			expires_at   = excluded.expires_at,
			metadata     = excluded.metadata`,
		rec.Token,
		rec.PrincipalID,
		rec.Guard,
		string(rec.Type),
		rec.SessionID,
		toMillis(rec.CreatedAt),
		mapOptionalMillis(rec.ExpiresAt),
		meta,
	)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	return rec, nil
}

func (r *tokensRepo) Find(ctx context.Context, token string) (domain.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE token = ?`, token)
	rec, err := scanToken(row)
	if err != nil {
		return domain.TokenRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *tokensRepo) FindBySession(ctx context.Context, sessionID string, filter store.TokenFilter) ([]domain.TokenRecord, error) {
	if sessionID == "" {
		return nil, nil
	}
	filter.SessionID = sessionID
	where, args := filterClause(filter)
	return r.query(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE `+where+` ORDER BY created_at`, args...)
}

func (r *tokensRepo) FindByPrincipal(ctx context.Context, principalID, guard string) ([]domain.TokenRecord, error) {
	where, args := filterClause(store.TokenFilter{Guard: guard})
	args = append([]any{principalID}, args...)
	return r.query(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE principal_id = ? AND `+where+` ORDER BY created_at`, args...)
}

func (r *tokensRepo) Delete(ctx context.Context, token string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = ?`, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *tokensRepo) DeleteByPrincipal(ctx context.Context, principalID string, filter store.TokenFilter) (int64, error) {
	where, args := filterClause(filter)
	args = append([]any{principalID}, args...)
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE principal_id = ? AND `+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *tokensRepo) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM auth_tokens WHERE token = ? AND type = ?`,
		token, string(domain.TokenTypeBlacklist),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *tokensRepo) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		toMillis(r.now()),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *tokensRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *tokensRepo) query(ctx context.Context, q string, args ...any) ([]domain.TokenRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TokenRecord
	for rows.Next() {
		rec, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// filterClause renders f as a WHERE fragment; it is "1 = 1" when f is empty.
func filterClause(f store.TokenFilter) (string, []any) {
	conds := []string{"1 = 1"}
	var args []any

	if f.Guard != "" {
		conds = append(conds, "guard = ?")
		args = append(args, f.Guard)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(marks, ", ")+")")
	}

	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (domain.TokenRecord, error) {
	var (
		rec       domain.TokenRecord
		typ       string
		createdAt int64
		expiresAt sql.NullInt64
		meta      string
	)
	if err := row.Scan(
		&rec.Token,
		&rec.PrincipalID,
		&rec.Guard,
		&typ,
		&rec.SessionID,
		&createdAt,
		&expiresAt,
		&meta,
	); err != nil {
		return domain.TokenRecord{}, err
	}

	rec.Type = domain.TokenType(typ)
	rec.CreatedAt = fromMillis(createdAt)
	rec.ExpiresAt = mapNullMillis(expiresAt)

	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return domain.TokenRecord{}, fmt.Errorf("decode token metadata: %w", err)
		}
	}
	return rec, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode token metadata: %w", err)
	}
	return string(b), nil
}
