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

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: connection id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, fmt.Errorf("%w: connection %q", core.ErrNotFound, trimmed)
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) GetByUniqueIdentifier(ctx context.Context, identifier string) (core.Connection, bool, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, false, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return core.Connection{}, false, fmt.Errorf("sqlstore: unique identifier is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("unique_identifier", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Connection{}, false, err
	}
	if len(records) == 0 {
		return core.Connection{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *ConnectionStore) ListByOrganization(ctx context.Context, organizationID string) ([]core.Connection, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(organizationID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: organization id is required")
	}
	var records []connectionRecord
	err := s.db.NewSelect().
		Model(&records).
		Join("JOIN onboarding_organization_connections AS ol ON ol.connection_id = oc.id").
		Where("ol.organization_id = ?", trimmed).
		OrderExpr("ol.created_at ASC, ol.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
