package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SecretProvider is the credential vault contract: authenticated symmetric
// encryption producing a self-contained envelope.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type OrganizationStore interface {
	Get(ctx context.Context, id string) (Organization, error)
	GetByName(ctx context.Context, name string) (Organization, error)
}

type MembershipStore interface {
	// FindByUser returns the user's membership, if any. The product rule is
	// one organisation per user; the store enforces it with a unique index
	// and this lookup returns the single row.
	FindByUser(ctx context.Context, userID string) (Membership, bool, error)
	FindByUserAndOrg(ctx context.Context, userID, organizationID string) (Membership, bool, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]Membership, error)
}

type ConnectionStore interface {
	Get(ctx context.Context, id string) (Connection, error)
	GetByUniqueIdentifier(ctx context.Context, identifier string) (Connection, bool, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]Connection, error)
}

type LinkStore interface {
	// ListOwners returns the organisations linked to a connection ordered by
	// link creation time (ties broken by link id), which fixes the
	// first-owner targeting for join requests.
	ListOwners(ctx context.Context, connectionID string) ([]Organization, error)
	Exists(ctx context.Context, organizationID, connectionID string) (bool, error)
	CountByOrganization(ctx context.Context, organizationID string) (int, error)
}

type JoinRequestStore interface {
	Get(ctx context.Context, id string) (JoinRequest, error)
	FindPending(ctx context.Context, userID, organizationID string) (JoinRequest, bool, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]JoinRequest, error)
	ListPendingByOrganization(ctx context.Context, organizationID string) ([]JoinRequest, error)
}

type UserStore interface {
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}

type CreateOrganizationInput struct {
	OrganizationName     string
	CallerID             string
	UniqueIdentifier     string
	ConnectionType       string
	ConnectionName       string
	EncryptedCredentials []byte
}

type AttachConnectionInput struct {
	OrganizationID       string
	CallerID             string
	UniqueIdentifier     string
	ConnectionType       string
	ConnectionName       string
	EncryptedCredentials []byte
}

type LinkConnectionInput struct {
	OrganizationID string
	ConnectionID   string
	CallerID       string
	// ReclaimCredentials carries the replacement envelope applied only when
	// the connection is still orphaned at commit time.
	ReclaimCredentials []byte
}

type EnqueueJoinRequestInput struct {
	UserID         string
	OrganizationID string
}

type DecideJoinRequestInput struct {
	RequestID string
	Action    DecisionAction
}

type RemoveConnectionInput struct {
	OrganizationID string
	ConnectionID   string
}

type ProvisionResult struct {
	Organization Organization
	Membership   Membership
	Connection   Connection
	Link         OrganizationConnection
}

type LinkResult struct {
	Link       OrganizationConnection
	Connection Connection
	Reclaimed  bool
}

type EnqueueJoinRequestResult struct {
	Request        JoinRequest
	AlreadyPending bool
}

type DecideJoinRequestResult struct {
	Request    JoinRequest
	Membership *Membership
}

type RemoveConnectionResult struct {
	Unlinked          bool
	ConnectionDeleted bool
}

// Provisioner groups the multi-statement mutations of the resolution
// protocol. Each method is one atomic transaction; advisory reads done by
// the orchestrator are re-validated inside, and unique-constraint losses
// surface as ErrConflict.
type Provisioner interface {
	CreateOrganizationWithConnection(ctx context.Context, in CreateOrganizationInput) (ProvisionResult, error)
	AttachNewConnection(ctx context.Context, in AttachConnectionInput) (ProvisionResult, error)
	LinkExistingConnection(ctx context.Context, in LinkConnectionInput) (LinkResult, error)
	EnqueueJoinRequest(ctx context.Context, in EnqueueJoinRequestInput) (EnqueueJoinRequestResult, error)
	DecideJoinRequest(ctx context.Context, in DecideJoinRequestInput) (DecideJoinRequestResult, error)
	RemoveConnection(ctx context.Context, in RemoveConnectionInput) (RemoveConnectionResult, error)
}

// StoreProvider exposes the read stores plus the transactional provisioner,
// usually backed by a single bun database.
type StoreProvider interface {
	OrganizationStore() OrganizationStore
	MembershipStore() MembershipStore
	ConnectionStore() ConnectionStore
	LinkStore() LinkStore
	JoinRequestStore() JoinRequestStore
	UserStore() UserStore
	Provisioner() Provisioner
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}
