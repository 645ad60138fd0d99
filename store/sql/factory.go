package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-onboarding/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the read stores and the transactional
// provisioner over a single bun database, and serves them to the core as a
// StoreProvider.
type RepositoryFactory struct {
	db *bun.DB

	organizationStore *OrganizationStore
	membershipStore   *MembershipStore
	connectionStore   *ConnectionStore
	linkStore         *LinkStore
	joinRequestStore  *JoinRequestStore
	userStore         *UserStore
	provisioner       *Provisioner
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.provisioner != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) OrganizationStore() core.OrganizationStore {
	if f == nil {
		return nil
	}
	return f.organizationStore
}

func (f *RepositoryFactory) MembershipStore() core.MembershipStore {
	if f == nil {
		return nil
	}
	return f.membershipStore
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) LinkStore() core.LinkStore {
	if f == nil {
		return nil
	}
	return f.linkStore
}

func (f *RepositoryFactory) JoinRequestStore() core.JoinRequestStore {
	if f == nil {
		return nil
	}
	return f.joinRequestStore
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) Provisioner() core.Provisioner {
	if f == nil {
		return nil
	}
	return f.provisioner
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	organizationRepo := repository.NewRepository[*organizationRecord](f.db, organizationHandlers())
	if validator, ok := organizationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid organization repository wiring: %w", err)
		}
	}
	membershipRepo := repository.NewRepository[*membershipRecord](f.db, membershipHandlers())
	if validator, ok := membershipRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid membership repository wiring: %w", err)
		}
	}
	connectionRepo := repository.NewRepository[*connectionRecord](f.db, connectionHandlers())
	if validator, ok := connectionRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	linkRepo := repository.NewRepository[*organizationConnectionRecord](f.db, linkHandlers())
	if validator, ok := linkRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid link repository wiring: %w", err)
		}
	}
	joinRequestRepo := repository.NewRepository[*joinRequestRecord](f.db, joinRequestHandlers())
	if validator, ok := joinRequestRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid join request repository wiring: %w", err)
		}
	}
	userRepo := repository.NewRepository[*userRecord](f.db, userHandlers())
	if validator, ok := userRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}

	f.organizationStore = &OrganizationStore{db: f.db, repo: organizationRepo}
	f.membershipStore = &MembershipStore{db: f.db, repo: membershipRepo}
	f.connectionStore = &ConnectionStore{db: f.db, repo: connectionRepo}
	f.linkStore = &LinkStore{db: f.db, repo: linkRepo}
	f.joinRequestStore = &JoinRequestStore{db: f.db, repo: joinRequestRepo}
	f.userStore = &UserStore{db: f.db, repo: userRepo}

	provisioner, err := NewProvisioner(f.db)
	if err != nil {
		return err
	}
	f.provisioner = provisioner
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ core.Provisioner            = (*Provisioner)(nil)
)
