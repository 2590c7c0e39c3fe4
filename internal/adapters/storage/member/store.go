package member

import (
	"context"
	"errors"

	domain "console/internal/domain/member"
)

// ErrNotFound is returned when no member has the requested id or email.
var ErrNotFound = errors.New("member not found")

// Store persists directory members.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Member, error)
	GetByEmail(ctx context.Context, email string) (domain.Member, error)
	Save(ctx context.Context, value domain.Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Member, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter carries filtering parameters for List and Count.
type ListFilter struct {
	Limit  int
	Offset int
	Type   string
	Status string
	Search string
	Sort   string // one of SortColumns; name when empty
	Desc   bool
}

// SortColumns are the columns List can order by.
var SortColumns = []string{"name", "type", "status", "language"}
