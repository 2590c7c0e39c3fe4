package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"console/internal/adapters/storage"
	domain "console/internal/domain/member"
)

const memberColumns = "id, name, email, type, language, status, code_hash"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Type, &m.Language, &m.Status, &m.CodeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, ErrNotFound
	}
	return m, err
}

// GetByID retrieves a member by its id.
// PRE: id is non-empty
// POST: Returns the member or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE id = ?", id)
	return scanMember(row)
}

// GetByEmail retrieves a member by email.
// PRE: email is non-empty
// POST: Returns the member or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Member, error) {
	if email == "" {
		return domain.Member{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE email = ? LIMIT 1", email)
	return scanMember(row)
}

// Save inserts or updates a member.
// PRE: value has been validated and carries a code hash
// POST: Member is persisted; created_at is kept on update
func (s *SQLiteStore) Save(ctx context.Context, value domain.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member (id, name, email, type, language, status, code_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, email=excluded.email, type=excluded.type,
			language=excluded.language, status=excluded.status, code_hash=excluded.code_hash`,
		value.ID, value.Name, value.Email, value.Type, value.Language, value.Status, value.CodeHash,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save member %s: %w", value.ID, err)
	}
	return nil
}

// Delete removes a member.
// PRE: id is non-empty
// POST: Member is removed; ErrNotFound if it did not exist
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM member WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// listWhereClause builds the WHERE clause and args for List/Count queries.
func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if filter.Type != "" {
		where += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += " AND (name LIKE ? OR email LIKE ?)"
		term := "%" + filter.Search + "%"
		args = append(args, term, term)
	}
	return where, args
}

// Count returns the number of members matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member"+where, args...).Scan(&count)
	return count, err
}

// listOrderClause maps the filter's sort to a whitelisted ORDER BY. Name is
// always the tie breaker so pages are stable.
func listOrderClause(filter ListFilter) string {
	column := "name"
	if slices.Contains(SortColumns, filter.Sort) {
		column = filter.Sort
	}
	dir := " ASC"
	if filter.Desc {
		dir = " DESC"
	}
	order := " ORDER BY " + column + dir
	if column != "name" {
		order += ", name ASC"
	}
	return order + ", id ASC"
}

// List returns members matching the filter, ordered by name unless the
// filter names another column.
// POST: At most filter.Limit members (1000 when unset)
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	where, args := listWhereClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM member"+where+listOrderClause(filter)+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
