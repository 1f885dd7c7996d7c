package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/roombook/internal/persistence"
)

// AppendAudit inserts an audit record with JSONB snapshots.
func (s *Store) AppendAudit(ctx context.Context, record persistence.AuditRecord) error {
	before, err := encodeSnapshot(record.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(record.After)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_name, action, target_type, target_id, before_state, after_state, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.ActorID, record.ActorName, record.Action,
		record.TargetType, record.TargetID, before, after, record.Details, record.CreatedAt.UTC(),
	)
	return mapError(err)
}

// ListAudit returns up to filter.Limit matching records, newest first.
func (s *Store) ListAudit(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditRecord, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.ActorName != "" {
		clauses = append(clauses, "actor_name = "+arg(filter.ActorName))
	}
	if filter.ActionPrefix != "" {
		clauses = append(clauses, "starts_with(action, "+arg(filter.ActionPrefix)+")")
	}
	if len(filter.ActionScopes) > 0 {
		clauses = append(clauses, "action LIKE ANY ("+arg(likePrefixes(filter.ActionScopes))+")")
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= "+arg(filter.From.UTC()))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= "+arg(filter.To.UTC()))
	}

	query := `SELECT id, actor_id, actor_name, action, target_type, target_id, before_state, after_state, details, created_at
		FROM audit_log`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.AuditRecord, 0)
	for rows.Next() {
		var (
			record        persistence.AuditRecord
			before, after []byte
		)
		if err := rows.Scan(&record.ID, &record.ActorID, &record.ActorName, &record.Action,
			&record.TargetType, &record.TargetID, &before, &after, &record.Details, &record.CreatedAt); err != nil {
			return nil, err
		}
		if record.Before, err = decodeSnapshot(before); err != nil {
			return nil, err
		}
		if record.After, err = decodeSnapshot(after); err != nil {
			return nil, err
		}
		record.CreatedAt = record.CreatedAt.UTC()
		out = append(out, record)
	}
	return out, mapError(rows.Err())
}

func encodeSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	return raw, nil
}

func decodeSnapshot(raw []byte) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode audit snapshot: %w", err)
	}
	return snapshot, nil
}

// likePrefixes turns action prefixes into LIKE patterns, escaping wildcards.
func likePrefixes(prefixes []string) []string {
	escape := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	patterns := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		patterns = append(patterns, escape.Replace(prefix)+"%")
	}
	return patterns
}
