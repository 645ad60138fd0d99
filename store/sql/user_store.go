package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// UserStore is read-only: user rows belong to the identity provider flow.
type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func (s *UserStore) Get(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.User{}, fmt.Errorf("sqlstore: user id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, fmt.Errorf("%w: user %q", core.ErrNotFound, trimmed)
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return core.User{}, fmt.Errorf("sqlstore: user email is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("email", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, fmt.Errorf("%w: user with email %q", core.ErrNotFound, trimmed)
	}
	return records[0].toDomain(), nil
}
