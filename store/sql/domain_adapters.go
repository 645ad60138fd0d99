package sqlstore

import (
	"time"

	"github.com/goliatone/go-onboarding/core"
	"github.com/google/uuid"
)

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newOrganizationRecord(name string, now time.Time) *organizationRecord {
	return &organizationRecord{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
	}
}

func (r *organizationRecord) toDomain() core.Organization {
	if r == nil {
		return core.Organization{}
	}
	return core.Organization{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}

func newMembershipRecord(userID, organizationID string, role core.Role, now time.Time) *membershipRecord {
	return &membershipRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           string(role),
		CreatedAt:      now,
	}
}

func (r *membershipRecord) toDomain() core.Membership {
	if r == nil {
		return core.Membership{}
	}
	return core.Membership{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Role:           core.Role(r.Role),
		CreatedAt:      r.CreatedAt,
	}
}

func newConnectionRecord(uniqueIdentifier, connectionType, name, createdBy string, encryptedCredentials []byte, now time.Time) *connectionRecord {
	return &connectionRecord{
		ID:                   uuid.NewString(),
		UniqueIdentifier:     uniqueIdentifier,
		Type:                 connectionType,
		Name:                 name,
		CreatedBy:            createdBy,
		EncryptedCredentials: append([]byte(nil), encryptedCredentials...),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:                   r.ID,
		UniqueIdentifier:     r.UniqueIdentifier,
		Type:                 r.Type,
		Name:                 r.Name,
		CreatedBy:            r.CreatedBy,
		EncryptedCredentials: append([]byte(nil), r.EncryptedCredentials...),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func newLinkRecord(organizationID, connectionID, addedBy string, now time.Time) *organizationConnectionRecord {
	return &organizationConnectionRecord{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		ConnectionID:   connectionID,
		AddedBy:        addedBy,
		CreatedAt:      now,
	}
}

func (r *organizationConnectionRecord) toDomain() core.OrganizationConnection {
	if r == nil {
		return core.OrganizationConnection{}
	}
	return core.OrganizationConnection{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		ConnectionID:   r.ConnectionID,
		AddedBy:        r.AddedBy,
		CreatedAt:      r.CreatedAt,
	}
}

func newJoinRequestRecord(userID, organizationID string, now time.Time) *joinRequestRecord {
	return &joinRequestRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		Status:         string(core.JoinRequestStatusPending),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *joinRequestRecord) toDomain() core.JoinRequest {
	if r == nil {
		return core.JoinRequest{}
	}
	return core.JoinRequest{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Status:         core.JoinRequestStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
