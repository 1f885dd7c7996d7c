package sqlite

import (
	"context"
	"fmt"

	"github.com/example/roombook/internal/persistence"
)

// RequesterRepository implements persistence.RequesterRepository using SQLite.
type RequesterRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRequesterRepository creates a new SQLite requester repository.
func NewRequesterRepository(pool *ConnectionPool) *RequesterRepository {
	return &RequesterRepository{pool: pool, mapper: NewErrorMapper()}
}

const requesterColumns = `id, username, display_name, role, created_at`

// CreateRequester inserts a requester and returns it with its assigned id.
func (r *RequesterRepository) CreateRequester(ctx context.Context, requester persistence.Requester) (persistence.Requester, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO requesters (username, display_name, role, created_at)
		VALUES (?, ?, ?, ?)`,
		requester.Username,
		requester.DisplayName,
		requester.Role,
		formatTime(requester.CreatedAt),
	)
	if err != nil {
		return persistence.Requester{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Requester{}, fmt.Errorf("read requester id: %w", err)
	}
	requester.ID = id
	requester.CreatedAt = requester.CreatedAt.UTC()
	return requester, nil
}

// GetRequester retrieves a requester by id.
func (r *RequesterRepository) GetRequester(ctx context.Context, id int64) (persistence.Requester, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+requesterColumns+` FROM requesters WHERE id = ?`, id)
	requester, err := scanRequester(row)
	if err != nil {
		return persistence.Requester{}, r.mapper.MapError(err)
	}
	return requester, nil
}

// GetRequesterByUsername retrieves a requester by username.
func (r *RequesterRepository) GetRequesterByUsername(ctx context.Context, username string) (persistence.Requester, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+requesterColumns+` FROM requesters WHERE username = ?`, username)
	requester, err := scanRequester(row)
	if err != nil {
		return persistence.Requester{}, r.mapper.MapError(err)
	}
	return requester, nil
}

// ListRequesters returns every requester ordered by username.
func (r *RequesterRepository) ListRequesters(ctx context.Context) ([]persistence.Requester, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+requesterColumns+` FROM requesters ORDER BY username`)
	if err != nil {
		return nil, r.mapper.MapError(err)
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
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

// DeleteRequester removes a requester; their reservations cascade.
func (r *RequesterRepository) DeleteRequester(ctx context.Context, id int64) (bool, error) {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM requesters WHERE id = ?`, id)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanRequester(row rowScanner) (persistence.Requester, error) {
	var (
		requester persistence.Requester
		createdAt string
	)
	if err := row.Scan(&requester.ID, &requester.Username, &requester.DisplayName, &requester.Role, &createdAt); err != nil {
		return persistence.Requester{}, err
	}
	var err error
	if requester.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Requester{}, err
	}
	return requester, nil
}
