package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/roombook/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
type AuditRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{pool: pool, mapper: NewErrorMapper()}
}

// AppendAudit inserts an audit record. Snapshots are stored as JSON.
func (r *AuditRepository) AppendAudit(ctx context.Context, record persistence.AuditRecord) error {
	before, err := encodeSnapshot(record.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(record.After)
	if err != nil {
		return err
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_name, action, target_type, target_id, before_json, after_json, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ActorID, record.ActorName, record.Action,
		record.TargetType, record.TargetID, before, after, record.Details,
		formatTime(record.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListAudit returns up to filter.Limit matching records, newest first.
func (r *AuditRepository) ListAudit(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ActorName != "" {
		clauses = append(clauses, "actor_name = ?")
		args = append(args, filter.ActorName)
	}
	if filter.ActionPrefix != "" {
		clauses = append(clauses, "substr(action, 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(filter.ActionPrefix), filter.ActionPrefix)
	}
	if len(filter.ActionScopes) > 0 {
		scopes := make([]string, 0, len(filter.ActionScopes))
		for _, scope := range filter.ActionScopes {
			scopes = append(scopes, "substr(action, 1, ?) = ?")
			args = append(args, utf8.RuneCountInString(scope), scope)
		}
		clauses = append(clauses, "("+strings.Join(scopes, " OR ")+")")
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*filter.To))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT id, actor_id, actor_name, action, target_type, target_id, before_json, after_json, details, created_at
		FROM audit_log`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := r.pool.DB().QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.AuditRecord, 0)
	for rows.Next() {
		var (
			record        persistence.AuditRecord
			before, after sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&record.ID, &record.ActorID, &record.ActorName, &record.Action,
			&record.TargetType, &record.TargetID, &before, &after, &record.Details, &createdAt); err != nil {
			return nil, err
		}
		if record.Before, err = decodeSnapshot(before); err != nil {
			return nil, err
		}
		if record.After, err = decodeSnapshot(after); err != nil {
			return nil, err
		}
		if record.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func encodeSnapshot(snapshot map[string]any) (sql.NullString, error) {
	if snapshot == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode audit snapshot: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeSnapshot(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid {
		return nil, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(raw.String), &snapshot); err != nil {
		return nil, fmt.Errorf("decode audit snapshot: %w", err)
	}
	return snapshot, nil
}
