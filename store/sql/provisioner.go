package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
	"github.com/uptrace/bun"
)

// Provisioner executes the multi-statement mutations of the resolution
// protocol. Each method is a single transaction; advisory reads done by the
// orchestrator are re-validated here, and unique-constraint losses surface
// as core.ErrConflict so the orchestrator can re-run the resolution.
type Provisioner struct {
	db *bun.DB
}

func NewProvisioner(db *bun.DB) (*Provisioner, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &Provisioner{db: db}, nil
}

func (p *Provisioner) CreateOrganizationWithConnection(ctx context.Context, in core.CreateOrganizationInput) (core.ProvisionResult, error) {
	if p == nil || p.db == nil {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	name := strings.TrimSpace(in.OrganizationName)
	caller := strings.TrimSpace(in.CallerID)
	identifier := strings.TrimSpace(in.UniqueIdentifier)
	if name == "" || caller == "" || identifier == "" {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: organization name, caller id and unique identifier are required")
	}
	if len(in.EncryptedCredentials) == 0 {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: encrypted credentials are required")
	}
	now := time.Now().UTC()

	var out core.ProvisionResult
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := p.requireNoMembership(ctx, tx, caller); err != nil {
			return err
		}

		organization := newOrganizationRecord(name, now)
		if _, err := tx.NewInsert().Model(organization).Exec(ctx); err != nil {
			return err
		}

		membership := newMembershipRecord(caller, organization.ID, core.RoleAdmin, now)
		if _, err := tx.NewInsert().Model(membership).Exec(ctx); err != nil {
			return err
		}

		connection := newConnectionRecord(identifier, in.ConnectionType, in.ConnectionName, caller, in.EncryptedCredentials, now)
		if _, err := tx.NewInsert().Model(connection).Exec(ctx); err != nil {
			return err
		}

		link := newLinkRecord(organization.ID, connection.ID, caller, now)
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}

		out = core.ProvisionResult{
			Organization: organization.toDomain(),
			Membership:   membership.toDomain(),
			Connection:   connection.toDomain(),
			Link:         link.toDomain(),
		}
		return nil
	})
	if err != nil {
		return core.ProvisionResult{}, wrapTxError(err)
	}
	return out, nil
}

func (p *Provisioner) AttachNewConnection(ctx context.Context, in core.AttachConnectionInput) (core.ProvisionResult, error) {
	if p == nil || p.db == nil {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	organizationID := strings.TrimSpace(in.OrganizationID)
	caller := strings.TrimSpace(in.CallerID)
	identifier := strings.TrimSpace(in.UniqueIdentifier)
	if organizationID == "" || caller == "" || identifier == "" {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: organization id, caller id and unique identifier are required")
	}
	if len(in.EncryptedCredentials) == 0 {
		return core.ProvisionResult{}, fmt.Errorf("sqlstore: encrypted credentials are required")
	}
	now := time.Now().UTC()

	var out core.ProvisionResult
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		organization := &organizationRecord{}
		if err := tx.NewSelect().Model(organization).Where("id = ?", organizationID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: organization %q", core.ErrNotFound, organizationID)
			}
			return err
		}

		connection := newConnectionRecord(identifier, in.ConnectionType, in.ConnectionName, caller, in.EncryptedCredentials, now)
		if _, err := tx.NewInsert().Model(connection).Exec(ctx); err != nil {
			return err
		}

		link := newLinkRecord(organizationID, connection.ID, caller, now)
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}

		out = core.ProvisionResult{
			Organization: organization.toDomain(),
			Connection:   connection.toDomain(),
			Link:         link.toDomain(),
		}
		return nil
	})
	if err != nil {
		return core.ProvisionResult{}, wrapTxError(err)
	}
	return out, nil
}

func (p *Provisioner) LinkExistingConnection(ctx context.Context, in core.LinkConnectionInput) (core.LinkResult, error) {
	if p == nil || p.db == nil {
		return core.LinkResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	organizationID := strings.TrimSpace(in.OrganizationID)
	connectionID := strings.TrimSpace(in.ConnectionID)
	caller := strings.TrimSpace(in.CallerID)
	if organizationID == "" || connectionID == "" || caller == "" {
		return core.LinkResult{}, fmt.Errorf("sqlstore: organization id, connection id and caller id are required")
	}
	now := time.Now().UTC()

	var out core.LinkResult
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		connection := &connectionRecord{}
		if err := tx.NewSelect().Model(connection).Where("id = ?", connectionID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: connection %q", core.ErrNotFound, connectionID)
			}
			return err
		}

		// Owner count is re-read inside the transaction: the replacement
		// envelope is applied only while the connection is still orphaned,
		// so a racing first owner keeps its secret.
		ownerCount, err := tx.NewSelect().
			Model((*organizationConnectionRecord)(nil)).
			Where("connection_id = ?", connectionID).
			Count(ctx)
		if err != nil {
			return err
		}

		if ownerCount == 0 && len(in.ReclaimCredentials) > 0 {
			result, updateErr := tx.NewUpdate().
				Model((*connectionRecord)(nil)).
				Set("encrypted_credentials = ?", in.ReclaimCredentials).
				Set("updated_at = ?", now).
				Where("id = ?", connectionID).
				Exec(ctx)
			if updateErr != nil {
				return updateErr
			}
			if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected > 0 {
				connection.EncryptedCredentials = append([]byte(nil), in.ReclaimCredentials...)
				connection.UpdatedAt = now
				out.Reclaimed = true
			}
		}

		link := newLinkRecord(organizationID, connectionID, caller, now)
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}

		out.Link = link.toDomain()
		out.Connection = connection.toDomain()
		return nil
	})
	if err != nil {
		return core.LinkResult{}, wrapTxError(err)
	}
	return out, nil
}

func (p *Provisioner) EnqueueJoinRequest(ctx context.Context, in core.EnqueueJoinRequestInput) (core.EnqueueJoinRequestResult, error) {
	if p == nil || p.db == nil {
		return core.EnqueueJoinRequestResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	organizationID := strings.TrimSpace(in.OrganizationID)
	if userID == "" || organizationID == "" {
		return core.EnqueueJoinRequestResult{}, fmt.Errorf("sqlstore: user id and organization id are required")
	}
	now := time.Now().UTC()

	var out core.EnqueueJoinRequestResult
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &joinRequestRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("user_id = ?", userID).
			Where("organization_id = ?", organizationID).
			Where("status = ?", string(core.JoinRequestStatusPending)).
			Scan(ctx)
		if err == nil {
			out = core.EnqueueJoinRequestResult{Request: existing.toDomain(), AlreadyPending: true}
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		record := newJoinRequestRecord(userID, organizationID, now)
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		out = core.EnqueueJoinRequestResult{Request: record.toDomain()}
		return nil
	})
	if err != nil {
		// A concurrent submitter won the pending-row race; collapse to the
		// surviving request.
		if isUniqueViolation(err) {
			pending := &joinRequestRecord{}
			findErr := p.db.NewSelect().
				Model(pending).
				Where("user_id = ?", userID).
				Where("organization_id = ?", organizationID).
				Where("status = ?", string(core.JoinRequestStatusPending)).
				Scan(ctx)
			if findErr == nil {
				return core.EnqueueJoinRequestResult{Request: pending.toDomain(), AlreadyPending: true}, nil
			}
		}
		return core.EnqueueJoinRequestResult{}, wrapTxError(err)
	}
	return out, nil
}

func (p *Provisioner) DecideJoinRequest(ctx context.Context, in core.DecideJoinRequestInput) (core.DecideJoinRequestResult, error) {
	if p == nil || p.db == nil {
		return core.DecideJoinRequestResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		return core.DecideJoinRequestResult{}, fmt.Errorf("sqlstore: join request id is required")
	}
	action, err := core.ParseDecisionAction(string(in.Action))
	if err != nil {
		return core.DecideJoinRequestResult{}, err
	}
	now := time.Now().UTC()

	var out core.DecideJoinRequestResult
	txErr := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &joinRequestRecord{}
		if err := tx.NewSelect().Model(record).Where("id = ?", requestID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: join request %q", core.ErrNotFound, requestID)
			}
			return err
		}

		request := record.toDomain()
		target := core.JoinRequestStatusDenied
		if action == core.DecisionApprove {
			target = core.JoinRequestStatusApproved
		}
		if err := request.TransitionTo(target, now); err != nil {
			if errors.Is(err, core.ErrInvalidJoinRequestTransition) {
				return fmt.Errorf("%w: request %s is %s", core.ErrAlreadyProcessed, record.ID, record.Status)
			}
			return err
		}

		// Guard on the pending status so a concurrent decision loses cleanly.
		result, updateErr := tx.NewUpdate().
			Model((*joinRequestRecord)(nil)).
			Set("status = ?", string(request.Status)).
			Set("updated_at = ?", now).
			Where("id = ?", record.ID).
			Where("status = ?", string(core.JoinRequestStatusPending)).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
			return fmt.Errorf("%w: request %s was decided concurrently", core.ErrAlreadyProcessed, record.ID)
		}

		out = core.DecideJoinRequestResult{Request: request}
		if action == core.DecisionApprove {
			membership := newMembershipRecord(record.UserID, record.OrganizationID, core.RoleMember, now)
			if _, err := tx.NewInsert().Model(membership).Exec(ctx); err != nil {
				return err
			}
			domainMembership := membership.toDomain()
			out.Membership = &domainMembership
		}
		return nil
	})
	if txErr != nil {
		return core.DecideJoinRequestResult{}, wrapTxError(txErr)
	}
	return out, nil
}

func (p *Provisioner) RemoveConnection(ctx context.Context, in core.RemoveConnectionInput) (core.RemoveConnectionResult, error) {
	if p == nil || p.db == nil {
		return core.RemoveConnectionResult{}, fmt.Errorf("sqlstore: provisioner is not configured")
	}
	organizationID := strings.TrimSpace(in.OrganizationID)
	connectionID := strings.TrimSpace(in.ConnectionID)
	if organizationID == "" || connectionID == "" {
		return core.RemoveConnectionResult{}, fmt.Errorf("sqlstore: organization id and connection id are required")
	}

	var out core.RemoveConnectionResult
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		orgLinks, err := tx.NewSelect().
			Model((*organizationConnectionRecord)(nil)).
			Where("organization_id = ?", organizationID).
			Count(ctx)
		if err != nil {
			return err
		}
		if orgLinks <= 1 {
			return core.ErrLastConnectionLink
		}

		result, deleteErr := tx.NewDelete().
			Model((*organizationConnectionRecord)(nil)).
			Where("organization_id = ?", organizationID).
			Where("connection_id = ?", connectionID).
			Exec(ctx)
		if deleteErr != nil {
			return deleteErr
		}
		if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
			return fmt.Errorf("%w: link for connection %q", core.ErrNotFound, connectionID)
		}
		out.Unlinked = true

		remaining, err := tx.NewSelect().
			Model((*organizationConnectionRecord)(nil)).
			Where("connection_id = ?", connectionID).
			Count(ctx)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := tx.NewDelete().
				Model((*connectionRecord)(nil)).
				Where("id = ?", connectionID).
				Exec(ctx); err != nil {
				return err
			}
			out.ConnectionDeleted = true
		}
		return nil
	})
	if err != nil {
		return core.RemoveConnectionResult{}, wrapTxError(err)
	}
	return out, nil
}

func (p *Provisioner) requireNoMembership(ctx context.Context, tx bun.Tx, userID string) error {
	count, err := tx.NewSelect().
		Model((*membershipRecord)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: user %q already belongs to an organization", core.ErrConflict, userID)
	}
	return nil
}

// wrapTxError maps persistence failures into the onboarding taxonomy:
// unique-constraint losses become conflicts, recognised sentinels pass
// through, everything else is a rolled-back transaction failure.
func wrapTxError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrAlreadyProcessed),
		errors.Is(err, core.ErrLastConnectionLink),
		errors.Is(err, core.ErrInvalidJoinRequestStatus),
		errors.Is(err, core.ErrInvalidJoinRequestTransition):
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrTxFailure, err)
}
