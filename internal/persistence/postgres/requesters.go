package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/roombook/internal/persistence"
)

const requesterColumns = `id, username, display_name, role, created_at`

// CreateRequester inserts a requester and returns it with its assigned id.
func (s *Store) CreateRequester(ctx context.Context, requester persistence.Requester) (persistence.Requester, error) {
	created, err := scanRequester(s.pool.QueryRow(ctx, `
		INSERT INTO requesters (username, display_name, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+requesterColumns,
		requester.Username, requester.DisplayName, requester.Role, requester.CreatedAt.UTC(),
	))
	if err != nil {
		return persistence.Requester{}, mapError(err)
	}
	return created, nil
}

// GetRequester retrieves a requester by id.
func (s *Store) GetRequester(ctx context.Context, id int64) (persistence.Requester, error) {
	requester, err := scanRequester(s.pool.QueryRow(ctx, `SELECT `+requesterColumns+` FROM requesters WHERE id = $1`, id))
	if err != nil {
		return persistence.Requester{}, mapError(err)
	}
	return requester, nil
}

// GetRequesterByUsername retrieves a requester by username.
func (s *Store) GetRequesterByUsername(ctx context.Context, username string) (persistence.Requester, error) {
	requester, err := scanRequester(s.pool.QueryRow(ctx, `SELECT `+requesterColumns+` FROM requesters WHERE username = $1`, username))
	if err != nil {
		return persistence.Requester{}, mapError(err)
	}
	return requester, nil
}

// ListRequesters returns every requester ordered by username.
func (s *Store) ListRequesters(ctx context.Context) ([]persistence.Requester, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+requesterColumns+` FROM requesters ORDER BY username COLLATE "C"`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Requester, 0)
	for rows.Next() {
		requester, err := scanRequester(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, requester)
	}
	return out, mapError(rows.Err())
}

// DeleteRequester removes a requester; their reservations cascade.
func (s *Store) DeleteRequester(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM requesters WHERE id = $1`, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRequester(row pgx.Row) (persistence.Requester, error) {
	var requester persistence.Requester
	if err := row.Scan(&requester.ID, &requester.Username, &requester.DisplayName, &requester.Role, &requester.CreatedAt); err != nil {
		return persistence.Requester{}, err
	}
	requester.CreatedAt = requester.CreatedAt.UTC()
	return requester, nil
}
