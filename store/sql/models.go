package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:onboarding_users,alias:ou"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull,unique"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type organizationRecord struct {
	bun.BaseModel `bun:"table:onboarding_organizations,alias:oo"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type membershipRecord struct {
	bun.BaseModel `bun:"table:onboarding_memberships,alias:om"`

	ID             string    `bun:"id,pk"`
	UserID         string    `bun:"user_id,notnull,unique"`
	OrganizationID string    `bun:"organization_id,notnull"`
	Role           string    `bun:"role,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type connectionRecord struct {
	bun.BaseModel `bun:"table:onboarding_connections,alias:oc"`

	ID                   string    `bun:"id,pk"`
	UniqueIdentifier     string    `bun:"unique_identifier,notnull,unique"`
	Type                 string    `bun:"type,notnull"`
	Name                 string    `bun:"name,notnull"`
	CreatedBy            string    `bun:"created_by,notnull"`
	EncryptedCredentials []byte    `bun:"encrypted_credentials,notnull"`
	CreatedAt            time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type organizationConnectionRecord struct {
	bun.BaseModel `bun:"table:onboarding_organization_connections,alias:ol"`

	ID             string    `bun:"id,pk"`
	OrganizationID string    `bun:"organization_id,notnull"`
	ConnectionID   string    `bun:"connection_id,notnull"`
	AddedBy        string    `bun:"added_by,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type joinRequestRecord struct {
	bun.BaseModel `bun:"table:onboarding_join_requests,alias:oj"`

	ID             string    `bun:"id,pk"`
	UserID         string    `bun:"user_id,notnull"`
	OrganizationID string    `bun:"organization_id,notnull"`
	Status         string    `bun:"status,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
