package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type MembershipStore struct {
	db   *bun.DB
	repo repository.Repository[*membershipRecord]
}

func (s *MembershipStore) FindByUser(ctx context.Context, userID string) (core.Membership, bool, error) {
	if s == nil || s.repo == nil {
		return core.Membership{}, false, fmt.Errorf("sqlstore: membership store is not configured")
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return core.Membership{}, false, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmed),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Membership{}, false, err
	}
	if len(records) == 0 {
		return core.Membership{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *MembershipStore) FindByUserAndOrg(ctx context.Context, userID, organizationID string) (core.Membership, bool, error) {
	if s == nil || s.repo == nil {
		return core.Membership{}, false, fmt.Errorf("sqlstore: membership store is not configured")
	}
	trimmedUser := strings.TrimSpace(userID)
	trimmedOrg := strings.TrimSpace(organizationID)
	if trimmedUser == "" || trimmedOrg == "" {
		return core.Membership{}, false, fmt.Errorf("sqlstore: user id and organization id are required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmedUser),
		repository.SelectBy("organization_id", "=", trimmedOrg),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Membership{}, false, err
	}
	if len(records) == 0 {
		return core.Membership{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *MembershipStore) ListByOrganization(ctx context.Context, organizationID string) ([]core.Membership, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: membership store is not configured")
	}
	trimmed := strings.TrimSpace(organizationID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: organization id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("organization_id", "=", trimmed),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Membership, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
