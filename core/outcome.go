package core

import "fmt"

// OutcomeKind enumerates every branch of the connection-resolution protocol,
// so callers can switch on the result instead of probing optional fields.
type OutcomeKind string

const (
	OutcomeRequiresOrganizationName  OutcomeKind = "requires_organization_name"
	OutcomeOrganizationCreated       OutcomeKind = "organization_created"
	OutcomeConnectionAdded           OutcomeKind = "connection_added"
	OutcomeAlreadyLinked             OutcomeKind = "already_linked"
	OutcomeJoinRequestSent           OutcomeKind = "join_request_sent"
	OutcomeJoinRequestAlreadyPending OutcomeKind = "join_request_already_pending"
	OutcomeOrphanedConnection        OutcomeKind = "orphaned_connection"
)

// Outcome is the tagged result of SubmitConnection. Only the fields relevant
// to Kind are populated.
type Outcome struct {
	Kind         OutcomeKind
	Message      string
	Organization *Organization
	Connection   *Connection
	JoinRequest  *JoinRequest
}

// OrganizationRef is the caller-facing identification of an organisation.
type OrganizationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubmitConnectionResponse is the wire encoding of an Outcome; every branch
// is distinguishable via Outcome plus the optional fields.
type SubmitConnectionResponse struct {
	Outcome              OutcomeKind      `json:"outcome"`
	Success              bool             `json:"success"`
	Message              string           `json:"message"`
	RequiresOrganization bool             `json:"requiresOrganization,omitempty"`
	ExistingOrganization *OrganizationRef `json:"existingOrganization,omitempty"`
	JoinRequestSent      bool             `json:"joinRequestSent,omitempty"`
	ConnectionID         string           `json:"connectionId,omitempty"`
}

func (o Outcome) Response() SubmitConnectionResponse {
	resp := SubmitConnectionResponse{
		Outcome: o.Kind,
		Message: o.Message,
	}
	switch o.Kind {
	case OutcomeRequiresOrganizationName:
		resp.RequiresOrganization = true
	case OutcomeOrganizationCreated, OutcomeConnectionAdded:
		resp.Success = true
		if o.Connection != nil {
			resp.ConnectionID = o.Connection.ID
		}
	case OutcomeAlreadyLinked:
		resp.Success = true
		if o.Connection != nil {
			resp.ConnectionID = o.Connection.ID
		}
	case OutcomeJoinRequestSent:
		resp.Success = true
		resp.JoinRequestSent = true
	case OutcomeJoinRequestAlreadyPending:
		resp.JoinRequestSent = true
	case OutcomeOrphanedConnection:
		if o.Connection != nil {
			resp.ConnectionID = o.Connection.ID
		}
	}
	if o.Organization != nil {
		resp.ExistingOrganization = &OrganizationRef{
			ID:   o.Organization.ID,
			Name: o.Organization.Name,
		}
	}
	return resp
}

// Decision is the result of deciding a join request.
type Decision struct {
	Request    JoinRequest
	Action     DecisionAction
	Membership *Membership
	Message    string
}

type DecideJoinRequestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (d Decision) Response() DecideJoinRequestResponse {
	return DecideJoinRequestResponse{
		Success: true,
		Message: d.Message,
	}
}

func requiresOrganizationMessage() string {
	return "Organization name required"
}

func organizationCreatedMessage(name string) string {
	return fmt.Sprintf("Organization %q created successfully with your connection!", name)
}

func connectionAddedMessage() string {
	return "Connection added to your organization successfully!"
}

func alreadyLinkedMessage() string {
	return "Your organization already has access to this connection."
}

func joinRequestSentMessage(orgName string) string {
	return fmt.Sprintf("Join request sent to %s. You'll be notified when an admin approves your request.", orgName)
}

func joinRequestPendingMessage() string {
	return "You already have a pending request to join this organization."
}

func orphanedConnectionMessage() string {
	return "This connection exists but is not owned by any organization. Contact an administrator."
}
