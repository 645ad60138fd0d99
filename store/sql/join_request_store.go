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

type JoinRequestStore struct {
	db   *bun.DB
	repo repository.Repository[*joinRequestRecord]
}

func (s *JoinRequestStore) Get(ctx context.Context, id string) (core.JoinRequest, error) {
	if s == nil || s.repo == nil {
		return core.JoinRequest{}, fmt.Errorf("sqlstore: join request store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.JoinRequest{}, fmt.Errorf("sqlstore: join request id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.JoinRequest{}, fmt.Errorf("%w: join request %q", core.ErrNotFound, trimmed)
		}
		return core.JoinRequest{}, err
	}
	return record.toDomain(), nil
}

func (s *JoinRequestStore) FindPending(ctx context.Context, userID, organizationID string) (core.JoinRequest, bool, error) {
	if s == nil || s.repo == nil {
		return core.JoinRequest{}, false, fmt.Errorf("sqlstore: join request store is not configured")
	}
	trimmedUser := strings.TrimSpace(userID)
	trimmedOrg := strings.TrimSpace(organizationID)
	if trimmedUser == "" || trimmedOrg == "" {
		return core.JoinRequest{}, false, fmt.Errorf("sqlstore: user id and organization id are required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmedUser),
		repository.SelectBy("organization_id", "=", trimmedOrg),
		repository.SelectBy("status", "=", string(core.JoinRequestStatusPending)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.JoinRequest{}, false, err
	}
	if len(records) == 0 {
		return core.JoinRequest{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *JoinRequestStore) ListByOrganization(ctx context.Context, organizationID string) ([]core.JoinRequest, error) {
	return s.listByOrganization(ctx, organizationID, "")
}

func (s *JoinRequestStore) ListPendingByOrganization(ctx context.Context, organizationID string) ([]core.JoinRequest, error) {
	return s.listByOrganization(ctx, organizationID, core.JoinRequestStatusPending)
}

func (s *JoinRequestStore) listByOrganization(ctx context.Context, organizationID string, status core.JoinRequestStatus) ([]core.JoinRequest, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: join request store is not configured")
	}
	trimmed := strings.TrimSpace(organizationID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: organization id is required")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("organization_id", "=", trimmed),
		repository.OrderBy("created_at ASC"),
	}
	if status != "" {
		criteria = append(criteria, repository.SelectBy("status", "=", string(status)))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.JoinRequest, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
