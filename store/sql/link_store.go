package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LinkStore struct {
	db   *bun.DB
	repo repository.Repository[*organizationConnectionRecord]
}

// ListOwners returns the organisations holding a link to the connection,
// ordered by link creation time with link id as tie-break. The head of this
// list is the join-request target for membership-less submitters.
func (s *LinkStore) ListOwners(ctx context.Context, connectionID string) ([]core.Organization, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: link store is not configured")
	}
	trimmed := strings.TrimSpace(connectionID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}
	var records []organizationRecord
	err := s.db.NewSelect().
		Model(&records).
		Join("JOIN onboarding_organization_connections AS ol ON ol.organization_id = oo.id").
		Where("ol.connection_id = ?", trimmed).
		OrderExpr("ol.created_at ASC, ol.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Organization, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *LinkStore) Exists(ctx context.Context, organizationID, connectionID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: link store is not configured")
	}
	trimmedOrg := strings.TrimSpace(organizationID)
	trimmedConnection := strings.TrimSpace(connectionID)
	if trimmedOrg == "" || trimmedConnection == "" {
		return false, fmt.Errorf("sqlstore: organization id and connection id are required")
	}
	count, err := s.db.NewSelect().
		Model((*organizationConnectionRecord)(nil)).
		Where("organization_id = ?", trimmedOrg).
		Where("connection_id = ?", trimmedConnection).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *LinkStore) CountByOrganization(ctx context.Context, organizationID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: link store is not configured")
	}
	trimmed := strings.TrimSpace(organizationID)
	if trimmed == "" {
		return 0, fmt.Errorf("sqlstore: organization id is required")
	}
	count, err := s.db.NewSelect().
		Model((*organizationConnectionRecord)(nil)).
		Where("organization_id = ?", trimmed).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}
