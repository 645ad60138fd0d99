package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-onboarding/core"
)

type MutatingService interface {
	SubmitConnection(ctx context.Context, callerID string, descriptor core.ConnectionDescriptor) (core.Outcome, error)
	DecideJoinRequest(ctx context.Context, adminID, requestID string, action core.DecisionAction) (core.Decision, error)
	RequestJoin(ctx context.Context, callerID, organizationID string) (core.Outcome, error)
	RemoveConnection(ctx context.Context, callerID, connectionID string) (core.RemoveConnectionResult, error)
}

type SubmitConnectionCommand struct {
	service MutatingService
}

func NewSubmitConnectionCommand(service MutatingService) *SubmitConnectionCommand {
	return &SubmitConnectionCommand{service: service}
}

func (c *SubmitConnectionCommand) Execute(ctx context.Context, msg SubmitConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submit connection service is required")
	}
	out, err := c.service.SubmitConnection(ctx, msg.CallerID, msg.Descriptor)
	if err != nil {
		return err
	}
	storeResult(ctx, out.Response())
	return nil
}

type DecideJoinRequestCommand struct {
	service MutatingService
}

func NewDecideJoinRequestCommand(service MutatingService) *DecideJoinRequestCommand {
	return &DecideJoinRequestCommand{service: service}
}

func (c *DecideJoinRequestCommand) Execute(ctx context.Context, msg DecideJoinRequestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: decide join request service is required")
	}
	out, err := c.service.DecideJoinRequest(ctx, msg.AdminID, msg.RequestID, msg.Action)
	if err != nil {
		return err
	}
	storeResult(ctx, out.Response())
	return nil
}

type RequestJoinCommand struct {
	service MutatingService
}

func NewRequestJoinCommand(service MutatingService) *RequestJoinCommand {
	return &RequestJoinCommand{service: service}
}

func (c *RequestJoinCommand) Execute(ctx context.Context, msg RequestJoinMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: request join service is required")
	}
	out, err := c.service.RequestJoin(ctx, msg.CallerID, msg.OrganizationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out.Response())
	return nil
}

type RemoveConnectionCommand struct {
	service MutatingService
}

func NewRemoveConnectionCommand(service MutatingService) *RemoveConnectionCommand {
	return &RemoveConnectionCommand{service: service}
}

func (c *RemoveConnectionCommand) Execute(ctx context.Context, msg RemoveConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remove connection service is required")
	}
	out, err := c.service.RemoveConnection(ctx, msg.CallerID, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
