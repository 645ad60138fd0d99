package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DecideJoinRequest applies an admin decision to a pending join request.
// Approval creates the member row in the same transaction that flips the
// status, so a reader never observes one without the other.
func (s *Service) DecideJoinRequest(ctx context.Context, adminID, requestID string, action DecisionAction) (decision Decision, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller_id":  strings.TrimSpace(adminID),
		"request_id": strings.TrimSpace(requestID),
		"action":     string(action),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "decide_join_request", err, fields)
	}()

	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		err = s.mapError(fmt.Errorf("core: authentication required"))
		return Decision{}, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		err = s.mapError(fmt.Errorf("core: join request id is required"))
		return Decision{}, err
	}
	if _, parseErr := ParseDecisionAction(string(action)); parseErr != nil {
		err = s.mapError(parseErr)
		return Decision{}, err
	}
	if s.joinRequestStore == nil || s.membershipStore == nil || s.provisioner == nil {
		err = s.mapError(fmt.Errorf("core: stores are not configured"))
		return Decision{}, err
	}

	request, getErr := s.joinRequestStore.Get(ctx, requestID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Decision{}, err
	}
	fields["organization_id"] = request.OrganizationID

	// Already-processed wins over forbidden so a terminal request reports the
	// same failure to every caller.
	if request.Status != JoinRequestStatusPending {
		err = s.mapError(fmt.Errorf("%w: request %s is %s", ErrAlreadyProcessed, request.ID, request.Status))
		return Decision{}, err
	}

	membership, found, findErr := s.membershipStore.FindByUserAndOrg(ctx, adminID, request.OrganizationID)
	if findErr != nil {
		err = s.mapError(findErr)
		return Decision{}, err
	}
	if !found || !membership.IsAdmin() {
		err = s.mapError(fmt.Errorf("core: forbidden: admin role required to decide join requests"))
		return Decision{}, err
	}

	result, decideErr := s.provisioner.DecideJoinRequest(ctx, DecideJoinRequestInput{
		RequestID: request.ID,
		Action:    action,
	})
	if decideErr != nil {
		err = s.mapError(decideErr)
		return Decision{}, err
	}

	message := "Join request denied."
	if action == DecisionApprove {
		message = "Join request approved. The user is now a member of your organization."
	}
	return Decision{
		Request:    result.Request,
		Action:     action,
		Membership: result.Membership,
		Message:    message,
	}, nil
}

// RequestJoin queues a join request directly against an organisation, the
// non-connection entry point to the same queue SubmitConnection feeds.
func (s *Service) RequestJoin(ctx context.Context, callerID, organizationID string) (outcome Outcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller_id":       strings.TrimSpace(callerID),
		"organization_id": strings.TrimSpace(organizationID),
	}
	defer func() {
		fields["outcome"] = string(outcome.Kind)
		s.observeOperation(ctx, startedAt, "request_join", err, fields)
	}()

	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		err = s.mapError(fmt.Errorf("core: authentication required"))
		return Outcome{}, err
	}
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		err = s.mapError(fmt.Errorf("core: organization id is required"))
		return Outcome{}, err
	}
	if s.organizationStore == nil || s.membershipStore == nil || s.joinRequestStore == nil || s.provisioner == nil {
		err = s.mapError(fmt.Errorf("core: stores are not configured"))
		return Outcome{}, err
	}

	organization, getErr := s.organizationStore.Get(ctx, organizationID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Outcome{}, err
	}

	if _, hasMembership, findErr := s.membershipStore.FindByUser(ctx, callerID); findErr != nil {
		err = s.mapError(findErr)
		return Outcome{}, err
	} else if hasMembership {
		err = s.mapError(fmt.Errorf("%w: user already belongs to an organization", ErrConflict))
		return Outcome{}, err
	}

	pending, alreadyPending, findErr := s.joinRequestStore.FindPending(ctx, callerID, organization.ID)
	if findErr != nil {
		err = s.mapError(findErr)
		return Outcome{}, err
	}
	if alreadyPending {
		return Outcome{
			Kind:         OutcomeJoinRequestAlreadyPending,
			Message:      joinRequestPendingMessage(),
			Organization: &organization,
			JoinRequest:  &pending,
		}, nil
	}

	result, enqueueErr := s.provisioner.EnqueueJoinRequest(ctx, EnqueueJoinRequestInput{
		UserID:         callerID,
		OrganizationID: organization.ID,
	})
	if enqueueErr != nil {
		err = s.mapError(enqueueErr)
		return Outcome{}, err
	}
	if result.AlreadyPending {
		return Outcome{
			Kind:         OutcomeJoinRequestAlreadyPending,
			Message:      joinRequestPendingMessage(),
			Organization: &organization,
			JoinRequest:  &result.Request,
		}, nil
	}
	return Outcome{
		Kind:         OutcomeJoinRequestSent,
		Message:      joinRequestSentMessage(organization.Name),
		Organization: &organization,
		JoinRequest:  &result.Request,
	}, nil
}

// RemoveConnection unlinks a connection from the caller's organisation. An
// organisation must retain at least one connection; removing the last link
// fails with ErrLastConnectionLink. A connection left with zero links is
// garbage-collected along with its credentials.
func (s *Service) RemoveConnection(ctx context.Context, callerID, connectionID string) (result RemoveConnectionResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller_id":     strings.TrimSpace(callerID),
		"connection_id": strings.TrimSpace(connectionID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_connection", err, fields)
	}()

	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		err = s.mapError(fmt.Errorf("core: authentication required"))
		return RemoveConnectionResult{}, err
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		err = s.mapError(fmt.Errorf("core: connection id is required"))
		return RemoveConnectionResult{}, err
	}
	if s.membershipStore == nil || s.linkStore == nil || s.provisioner == nil {
		err = s.mapError(fmt.Errorf("core: stores are not configured"))
		return RemoveConnectionResult{}, err
	}

	membership, found, findErr := s.membershipStore.FindByUser(ctx, callerID)
	if findErr != nil {
		err = s.mapError(findErr)
		return RemoveConnectionResult{}, err
	}
	if !found {
		err = s.mapError(fmt.Errorf("core: forbidden: caller has no organization"))
		return RemoveConnectionResult{}, err
	}
	if !membership.IsAdmin() {
		err = s.mapError(fmt.Errorf("core: forbidden: admin role required to remove connections"))
		return RemoveConnectionResult{}, err
	}
	fields["organization_id"] = membership.OrganizationID

	linked, existsErr := s.linkStore.Exists(ctx, membership.OrganizationID, connectionID)
	if existsErr != nil {
		err = s.mapError(existsErr)
		return RemoveConnectionResult{}, err
	}
	if !linked {
		err = s.mapError(fmt.Errorf("%w: connection is not linked to your organization", ErrNotFound))
		return RemoveConnectionResult{}, err
	}

	removed, removeErr := s.provisioner.RemoveConnection(ctx, RemoveConnectionInput{
		OrganizationID: membership.OrganizationID,
		ConnectionID:   connectionID,
	})
	if removeErr != nil {
		err = s.mapError(removeErr)
		return RemoveConnectionResult{}, err
	}
	return removed, nil
}

// GetMembership reports the caller's organisation and role, if any.
func (s *Service) GetMembership(ctx context.Context, callerID string) (Membership, Organization, bool, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return Membership{}, Organization{}, false, s.mapError(fmt.Errorf("core: authentication required"))
	}
	if s.membershipStore == nil || s.organizationStore == nil {
		return Membership{}, Organization{}, false, s.mapError(fmt.Errorf("core: stores are not configured"))
	}
	membership, found, err := s.membershipStore.FindByUser(ctx, callerID)
	if err != nil {
		return Membership{}, Organization{}, false, s.mapError(err)
	}
	if !found {
		return Membership{}, Organization{}, false, nil
	}
	organization, err := s.organizationStore.Get(ctx, membership.OrganizationID)
	if err != nil {
		return Membership{}, Organization{}, false, s.mapError(err)
	}
	return membership, organization, true, nil
}

// ListConnections returns the connections linked to the caller's
// organisation. Credentials stay encrypted in the returned records.
func (s *Service) ListConnections(ctx context.Context, callerID string) ([]Connection, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, s.mapError(fmt.Errorf("core: authentication required"))
	}
	if s.membershipStore == nil || s.connectionStore == nil {
		return nil, s.mapError(fmt.Errorf("core: stores are not configured"))
	}
	membership, found, err := s.membershipStore.FindByUser(ctx, callerID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if !found {
		return []Connection{}, nil
	}
	connections, err := s.connectionStore.ListByOrganization(ctx, membership.OrganizationID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return connections, nil
}

// ListJoinRequests returns an organisation's join requests to an admin
// caller; pendingOnly narrows to the actionable queue.
func (s *Service) ListJoinRequests(ctx context.Context, callerID string, pendingOnly bool) ([]JoinRequest, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, s.mapError(fmt.Errorf("core: authentication required"))
	}
	if s.membershipStore == nil || s.joinRequestStore == nil {
		return nil, s.mapError(fmt.Errorf("core: stores are not configured"))
	}
	membership, found, err := s.membershipStore.FindByUser(ctx, callerID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if !found || !membership.IsAdmin() {
		return nil, s.mapError(fmt.Errorf("core: forbidden: admin role required to list join requests"))
	}
	if pendingOnly {
		requests, err := s.joinRequestStore.ListPendingByOrganization(ctx, membership.OrganizationID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return requests, nil
	}
	requests, err := s.joinRequestStore.ListByOrganization(ctx, membership.OrganizationID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return requests, nil
}

// RevealCredentials decrypts a connection's credential bundle for an admin
// of an organisation that holds a link to it.
func (s *Service) RevealCredentials(ctx context.Context, callerID, connectionID string) (bundle CredentialBundle, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller_id":     strings.TrimSpace(callerID),
		"connection_id": strings.TrimSpace(connectionID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "reveal_credentials", err, fields)
	}()

	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		err = s.mapError(fmt.Errorf("core: authentication required"))
		return CredentialBundle{}, err
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		err = s.mapError(fmt.Errorf("core: connection id is required"))
		return CredentialBundle{}, err
	}
	if s.membershipStore == nil || s.connectionStore == nil || s.linkStore == nil {
		err = s.mapError(fmt.Errorf("core: stores are not configured"))
		return CredentialBundle{}, err
	}
	if s.secretProvider == nil {
		err = s.mapError(fmt.Errorf("core: secret provider is not configured"))
		return CredentialBundle{}, err
	}

	membership, found, findErr := s.membershipStore.FindByUser(ctx, callerID)
	if findErr != nil {
		err = s.mapError(findErr)
		return CredentialBundle{}, err
	}
	if !found || !membership.IsAdmin() {
		err = s.mapError(fmt.Errorf("core: forbidden: admin role required to reveal credentials"))
		return CredentialBundle{}, err
	}

	linked, existsErr := s.linkStore.Exists(ctx, membership.OrganizationID, connectionID)
	if existsErr != nil {
		err = s.mapError(existsErr)
		return CredentialBundle{}, err
	}
	if !linked {
		err = s.mapError(fmt.Errorf("%w: connection is not linked to your organization", ErrNotFound))
		return CredentialBundle{}, err
	}

	connection, getErr := s.connectionStore.Get(ctx, connectionID)
	if getErr != nil {
		err = s.mapError(getErr)
		return CredentialBundle{}, err
	}

	plaintext, decryptErr := s.secretProvider.Decrypt(ctx, connection.EncryptedCredentials)
	if decryptErr != nil {
		err = s.mapError(decryptErr)
		return CredentialBundle{}, err
	}
	decoded, decodeErr := DecodeCredentialBundle(plaintext)
	if decodeErr != nil {
		err = s.mapError(decodeErr)
		return CredentialBundle{}, err
	}
	return decoded, nil
}
