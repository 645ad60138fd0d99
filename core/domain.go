package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRole                  = errors.New("core: invalid membership role")
	ErrInvalidJoinRequestStatus     = errors.New("core: invalid join request status")
	ErrInvalidJoinRequestTransition = errors.New("core: invalid join request status transition")
	ErrLastConnectionLink           = errors.New("core: organisation must retain at least one connection")
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RoleMember:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
}

// User rows are owned by the external identity provider flow; this module
// only ever reads them.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Membership struct {
	ID             string
	UserID         string
	OrganizationID string
	Role           Role
	CreatedAt      time.Time
}

func (m Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Connection is a credentialed descriptor of an external system instance,
// globally identified by its normalized URL. EncryptedCredentials holds the
// vault envelope; plaintext secrets never live on this type.
type Connection struct {
	ID                   string
	UniqueIdentifier     string
	Type                 string
	Name                 string
	CreatedBy            string
	EncryptedCredentials []byte
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrganizationConnection grants an organisation access to a connection. A
// connection with zero links is orphaned.
type OrganizationConnection struct {
	ID             string
	OrganizationID string
	ConnectionID   string
	AddedBy        string
	CreatedAt      time.Time
}

type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusApproved JoinRequestStatus = "approved"
	JoinRequestStatusDenied   JoinRequestStatus = "denied"
)

func (s JoinRequestStatus) Validate() error {
	switch s {
	case JoinRequestStatusPending, JoinRequestStatusApproved, JoinRequestStatusDenied:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJoinRequestStatus, string(s))
}

func (s JoinRequestStatus) Terminal() bool {
	return s == JoinRequestStatusApproved || s == JoinRequestStatusDenied
}

type JoinRequest struct {
	ID             string
	UserID         string
	OrganizationID string
	Status         JoinRequestStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *JoinRequest) TransitionTo(status JoinRequestStatus, now time.Time) error {
	if r == nil {
		return nil
	}
	if err := status.Validate(); err != nil {
		return err
	}
	if !joinRequestTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJoinRequestTransition, r.Status, status)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

func joinRequestTransitionAllowed(current, next JoinRequestStatus) bool {
	allowed := map[JoinRequestStatus]map[JoinRequestStatus]struct{}{
		JoinRequestStatusPending: {
			JoinRequestStatusApproved: {},
			JoinRequestStatusDenied:   {},
		},
		JoinRequestStatusApproved: {},
		JoinRequestStatusDenied:   {},
	}
	_, ok := allowed[current][next]
	return ok
}

type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionDeny    DecisionAction = "deny"
)

func ParseDecisionAction(value string) (DecisionAction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DecisionApprove):
		return DecisionApprove, nil
	case string(DecisionDeny):
		return DecisionDeny, nil
	}
	return "", fmt.Errorf("core: invalid decision action %q", value)
}
