package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/core"
)

const (
	TypeSubmitConnection = "onboarding.command.connection.submit"
	TypeDecideJoin       = "onboarding.command.join_request.decide"
	TypeRequestJoin      = "onboarding.command.join_request.create"
	TypeRemoveConnection = "onboarding.command.connection.remove"
)

type SubmitConnectionMessage struct {
	CallerID   string
	Descriptor core.ConnectionDescriptor
}

func (SubmitConnectionMessage) Type() string { return TypeSubmitConnection }

func (m SubmitConnectionMessage) Validate() error {
	if strings.TrimSpace(m.CallerID) == "" {
		return fmt.Errorf("command: caller id is required")
	}
	if strings.TrimSpace(m.Descriptor.URL) == "" {
		return fmt.Errorf("command: connection url is required")
	}
	if strings.TrimSpace(m.Descriptor.ClientID) == "" {
		return fmt.Errorf("command: client id is required")
	}
	if m.Descriptor.ClientSecret == "" {
		return fmt.Errorf("command: client secret is required")
	}
	return nil
}

type DecideJoinRequestMessage struct {
	AdminID   string
	RequestID string
	Action    core.DecisionAction
}

func (DecideJoinRequestMessage) Type() string { return TypeDecideJoin }

func (m DecideJoinRequestMessage) Validate() error {
	if strings.TrimSpace(m.AdminID) == "" {
		return fmt.Errorf("command: admin id is required")
	}
	if strings.TrimSpace(m.RequestID) == "" {
		return fmt.Errorf("command: request id is required")
	}
	if _, err := core.ParseDecisionAction(string(m.Action)); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type RequestJoinMessage struct {
	CallerID       string
	OrganizationID string
}

func (RequestJoinMessage) Type() string { return TypeRequestJoin }

func (m RequestJoinMessage) Validate() error {
	if strings.TrimSpace(m.CallerID) == "" {
		return fmt.Errorf("command: caller id is required")
	}
	if strings.TrimSpace(m.OrganizationID) == "" {
		return fmt.Errorf("command: organization id is required")
	}
	return nil
}

type RemoveConnectionMessage struct {
	CallerID     string
	ConnectionID string
}

func (RemoveConnectionMessage) Type() string { return TypeRemoveConnection }

func (m RemoveConnectionMessage) Validate() error {
	if strings.TrimSpace(m.CallerID) == "" {
		return fmt.Errorf("command: caller id is required")
	}
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("command: connection id is required")
	}
	return nil
}
