package onboarding

import (
	"fmt"
	"strings"

	onboardingcommand "github.com/goliatone/go-onboarding/command"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/security"
)

// Setup builds the onboarding service, constructing the credential vault
// from the resolved configuration when no secret provider option is given.
// The encryption key is process-wide configuration: it is read once here and
// never derived from request data. An explicit WithSecretProvider always
// wins over the configured key.
func Setup(cfg core.Config, options ...core.Option) (*core.Service, error) {
	svc, err := core.NewService(cfg, options...)
	if err != nil {
		return nil, err
	}
	if svc.Dependencies().SecretProvider != nil {
		return svc, nil
	}

	resolved := svc.Config()
	key := strings.TrimSpace(resolved.Encryption.Key)
	if key == "" {
		return svc, nil
	}
	vault, err := security.NewAppKeySecretProviderFromString(key, security.WithKeyID(resolved.Encryption.KeyID))
	if err != nil {
		return nil, err
	}

	opts := append(append([]core.Option{}, options...), core.WithSecretProvider(vault))
	return core.NewService(cfg, opts...)
}

type CommandService interface {
	onboardingcommand.MutatingService
}

type Commands struct {
	SubmitConnection  *onboardingcommand.SubmitConnectionCommand
	DecideJoinRequest *onboardingcommand.DecideJoinRequestCommand
	RequestJoin       *onboardingcommand.RequestJoinCommand
	RemoveConnection  *onboardingcommand.RemoveConnectionCommand
}

// Facade bundles the command handlers over a single onboarding service, for
// hosts that dispatch through a command bus rather than calling the service
// directly.
type Facade struct {
	service  CommandService
	commands Commands
}

func NewFacade(service CommandService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("onboarding: command service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitConnection:  onboardingcommand.NewSubmitConnectionCommand(service),
		DecideJoinRequest: onboardingcommand.NewDecideJoinRequestCommand(service),
		RequestJoin:       onboardingcommand.NewRequestJoinCommand(service),
		RemoveConnection:  onboardingcommand.NewRemoveConnectionCommand(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}
