package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SubmitConnection runs the connection-resolution protocol: given a caller
// and a connection descriptor it decides whether to create an organisation,
// attach the connection to the caller's organisation, link an existing
// connection, or queue a join request against the owning organisation.
//
// Reads performed here are advisory; every mutating branch delegates to the
// Provisioner, which re-validates inside a single transaction. A lost
// creation race surfaces as a conflict and the resolution re-runs once,
// landing in the connection-exists branch.
func (s *Service) SubmitConnection(ctx context.Context, callerID string, descriptor ConnectionDescriptor) (outcome Outcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller_id": strings.TrimSpace(callerID),
	}
	defer func() {
		fields["outcome"] = string(outcome.Kind)
		s.observeOperation(ctx, startedAt, "submit_connection", err, fields)
	}()

	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		err = s.mapError(fmt.Errorf("core: authentication required"))
		return Outcome{}, err
	}

	normalized, normalizeErr := descriptor.Normalize()
	if normalizeErr != nil {
		err = s.mapError(normalizeErr)
		return Outcome{}, err
	}
	fields["unique_identifier"] = normalized.UniqueIdentifier

	if s.membershipStore == nil || s.connectionStore == nil || s.linkStore == nil || s.joinRequestStore == nil {
		err = s.mapError(fmt.Errorf("core: stores are not configured"))
		return Outcome{}, err
	}
	if s.provisioner == nil {
		err = s.mapError(fmt.Errorf("core: provisioner is not configured"))
		return Outcome{}, err
	}

	outcome, err = s.resolveConnection(ctx, callerID, normalized)
	if err != nil && IsConflict(err) {
		// Another caller won the creation race; the identifier now resolves
		// to an existing connection, so one re-run settles the branch.
		outcome, err = s.resolveConnection(ctx, callerID, normalized)
	}
	if err != nil {
		err = s.mapError(err)
		return Outcome{}, err
	}
	if outcome.Organization != nil {
		fields["organization_id"] = outcome.Organization.ID
	}
	if outcome.Connection != nil {
		fields["connection_id"] = outcome.Connection.ID
	}
	return outcome, nil
}

func (s *Service) resolveConnection(ctx context.Context, callerID string, normalized NormalizedDescriptor) (Outcome, error) {
	membership, hasMembership, err := s.membershipStore.FindByUser(ctx, callerID)
	if err != nil {
		return Outcome{}, err
	}

	connection, exists, err := s.connectionStore.GetByUniqueIdentifier(ctx, normalized.UniqueIdentifier)
	if err != nil {
		return Outcome{}, err
	}

	if !exists {
		return s.resolveNewConnection(ctx, callerID, membership, hasMembership, normalized)
	}
	return s.resolveExistingConnection(ctx, callerID, membership, hasMembership, connection, normalized)
}

func (s *Service) resolveNewConnection(
	ctx context.Context,
	callerID string,
	membership Membership,
	hasMembership bool,
	normalized NormalizedDescriptor,
) (Outcome, error) {
	if !hasMembership && !normalized.HasOrganizationName() {
		return Outcome{
			Kind:    OutcomeRequiresOrganizationName,
			Message: requiresOrganizationMessage(),
		}, nil
	}

	encrypted, err := s.encryptCredentials(ctx, normalized)
	if err != nil {
		return Outcome{}, err
	}

	if !hasMembership {
		result, err := s.provisioner.CreateOrganizationWithConnection(ctx, CreateOrganizationInput{
			OrganizationName:     normalized.OrganizationName,
			CallerID:             callerID,
			UniqueIdentifier:     normalized.UniqueIdentifier,
			ConnectionType:       normalized.Type,
			ConnectionName:       normalized.DisplayName,
			EncryptedCredentials: encrypted,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:         OutcomeOrganizationCreated,
			Message:      organizationCreatedMessage(result.Organization.Name),
			Organization: &result.Organization,
			Connection:   &result.Connection,
		}, nil
	}

	result, err := s.provisioner.AttachNewConnection(ctx, AttachConnectionInput{
		OrganizationID:       membership.OrganizationID,
		CallerID:             callerID,
		UniqueIdentifier:     normalized.UniqueIdentifier,
		ConnectionType:       normalized.Type,
		ConnectionName:       normalized.DisplayName,
		EncryptedCredentials: encrypted,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Kind:         OutcomeConnectionAdded,
		Message:      connectionAddedMessage(),
		Organization: &result.Organization,
		Connection:   &result.Connection,
	}, nil
}

func (s *Service) resolveExistingConnection(
	ctx context.Context,
	callerID string,
	membership Membership,
	hasMembership bool,
	connection Connection,
	normalized NormalizedDescriptor,
) (Outcome, error) {
	owners, err := s.linkStore.ListOwners(ctx, connection.ID)
	if err != nil {
		return Outcome{}, err
	}

	if hasMembership {
		for i := range owners {
			if owners[i].ID == membership.OrganizationID {
				return Outcome{
					Kind:         OutcomeAlreadyLinked,
					Message:      alreadyLinkedMessage(),
					Organization: &owners[i],
					Connection:   &connection,
				}, nil
			}
		}

		// An orphaned connection is reclaimed on link: the replacement
		// envelope is applied only if the connection still has no owners at
		// commit time, so a racing owner's secret is never clobbered.
		var reclaim []byte
		if len(owners) == 0 {
			reclaim, err = s.encryptCredentials(ctx, normalized)
			if err != nil {
				return Outcome{}, err
			}
		}

		result, err := s.provisioner.LinkExistingConnection(ctx, LinkConnectionInput{
			OrganizationID:     membership.OrganizationID,
			ConnectionID:       connection.ID,
			CallerID:           callerID,
			ReclaimCredentials: reclaim,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:       OutcomeConnectionAdded,
			Message:    connectionAddedMessage(),
			Connection: &result.Connection,
		}, nil
	}

	if len(owners) == 0 {
		return Outcome{
			Kind:       OutcomeOrphanedConnection,
			Message:    orphanedConnectionMessage(),
			Connection: &connection,
		}, nil
	}

	// First-owner targeting: ListOwners orders by link creation time with id
	// as tie-break, so concurrent submissions always target the same
	// organisation.
	target := owners[0]

	pending, alreadyPending, err := s.joinRequestStore.FindPending(ctx, callerID, target.ID)
	if err != nil {
		return Outcome{}, err
	}
	if alreadyPending {
		return Outcome{
			Kind:         OutcomeJoinRequestAlreadyPending,
			Message:      joinRequestPendingMessage(),
			Organization: &target,
			JoinRequest:  &pending,
		}, nil
	}

	result, err := s.provisioner.EnqueueJoinRequest(ctx, EnqueueJoinRequestInput{
		UserID:         callerID,
		OrganizationID: target.ID,
	})
	if err != nil {
		return Outcome{}, err
	}
	if result.AlreadyPending {
		return Outcome{
			Kind:         OutcomeJoinRequestAlreadyPending,
			Message:      joinRequestPendingMessage(),
			Organization: &target,
			JoinRequest:  &result.Request,
		}, nil
	}
	return Outcome{
		Kind:         OutcomeJoinRequestSent,
		Message:      joinRequestSentMessage(target.Name),
		Organization: &target,
		JoinRequest:  &result.Request,
	}, nil
}

func (s *Service) encryptCredentials(ctx context.Context, normalized NormalizedDescriptor) ([]byte, error) {
	if s.secretProvider == nil {
		return nil, fmt.Errorf("core: secret provider is not configured")
	}
	bundle, err := EncodeCredentialBundle(normalized)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.secretProvider.Encrypt(ctx, bundle)
	if err != nil {
		return nil, err
	}
	return encrypted, nil
}
