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

type OrganizationStore struct {
	db   *bun.DB
	repo repository.Repository[*organizationRecord]
}

func (s *OrganizationStore) Get(ctx context.Context, id string) (core.Organization, error) {
	if s == nil || s.repo == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Organization{}, fmt.Errorf("%w: organization %q", core.ErrNotFound, trimmed)
		}
		return core.Organization{}, err
	}
	return record.toDomain(), nil
}

func (s *OrganizationStore) GetByName(ctx context.Context, name string) (core.Organization, error) {
	if s == nil || s.repo == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization name is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("name", "=", trimmed),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Organization{}, err
	}
	if len(records) == 0 {
		return core.Organization{}, fmt.Errorf("%w: organization named %q", core.ErrNotFound, trimmed)
	}
	return records[0].toDomain(), nil
}
