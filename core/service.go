package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the onboarding orchestrator. It performs advisory reads through
// the read stores and delegates every multi-statement mutation to the
// Provisioner so each branch of the resolution protocol commits atomically.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	organizationStore OrganizationStore
	membershipStore   MembershipStore
	connectionStore   ConnectionStore
	linkStore         LinkStore
	joinRequestStore  JoinRequestStore
	userStore         UserStore
	provisioner       Provisioner
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	OrganizationStore OrganizationStore
	MembershipStore   MembershipStore
	ConnectionStore   ConnectionStore
	LinkStore         LinkStore
	JoinRequestStore  JoinRequestStore
	UserStore         UserStore
	Provisioner       Provisioner
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("onboarding", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("onboarding"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.missingStores() && builder.repositoryFactory != nil {
		var storeProvider StoreProvider
		if factory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = direct
		}
		if storeProvider != nil {
			builder.adoptStores(storeProvider)
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		organizationStore: builder.organizationStore,
		membershipStore:   builder.membershipStore,
		connectionStore:   builder.connectionStore,
		linkStore:         builder.linkStore,
		joinRequestStore:  builder.joinRequestStore,
		userStore:         builder.userStore,
		provisioner:       builder.provisioner,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func (b *serviceBuilder) missingStores() bool {
	return b.organizationStore == nil ||
		b.membershipStore == nil ||
		b.connectionStore == nil ||
		b.linkStore == nil ||
		b.joinRequestStore == nil ||
		b.userStore == nil ||
		b.provisioner == nil
}

func (b *serviceBuilder) adoptStores(provider StoreProvider) {
	if b.organizationStore == nil {
		b.organizationStore = provider.OrganizationStore()
	}
	if b.membershipStore == nil {
		b.membershipStore = provider.MembershipStore()
	}
	if b.connectionStore == nil {
		b.connectionStore = provider.ConnectionStore()
	}
	if b.linkStore == nil {
		b.linkStore = provider.LinkStore()
	}
	if b.joinRequestStore == nil {
		b.joinRequestStore = provider.JoinRequestStore()
	}
	if b.userStore == nil {
		b.userStore = provider.UserStore()
	}
	if b.provisioner == nil {
		b.provisioner = provider.Provisioner()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		OrganizationStore: s.organizationStore,
		MembershipStore:   s.membershipStore,
		ConnectionStore:   s.connectionStore,
		LinkStore:         s.linkStore,
		JoinRequestStore:  s.joinRequestStore,
		UserStore:         s.userStore,
		Provisioner:       s.provisioner,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
