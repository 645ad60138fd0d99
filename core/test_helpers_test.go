package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// memoryState is a single in-process rendition of the six relations, shared
// by the memory stores and the memory provisioner so tests can assert on
// exact row counts.
type memoryState struct {
	mu            sync.Mutex
	seq           int
	organizations map[string]Organization
	memberships   map[string]Membership
	connections   map[string]Connection
	links         []OrganizationConnection
	joinRequests  map[string]JoinRequest
	users         map[string]User
}

func newMemoryState() *memoryState {
	return &memoryState{
		organizations: map[string]Organization{},
		memberships:   map[string]Membership{},
		connections:   map[string]Connection{},
		joinRequests:  map[string]JoinRequest{},
		users:         map[string]User{},
	}
}

func (s *memoryState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memoryState) membershipByUser(userID string) (Membership, bool) {
	for _, membership := range s.memberships {
		if membership.UserID == userID {
			return membership, true
		}
	}
	return Membership{}, false
}

func (s *memoryState) connectionByIdentifier(identifier string) (Connection, bool) {
	for _, connection := range s.connections {
		if connection.UniqueIdentifier == identifier {
			return connection, true
		}
	}
	return Connection{}, false
}

func (s *memoryState) ownersOf(connectionID string) []Organization {
	out := []Organization{}
	for _, link := range s.links {
		if link.ConnectionID != connectionID {
			continue
		}
		if organization, ok := s.organizations[link.OrganizationID]; ok {
			out = append(out, organization)
		}
	}
	return out
}

func (s *memoryState) linkExists(organizationID, connectionID string) bool {
	for _, link := range s.links {
		if link.OrganizationID == organizationID && link.ConnectionID == connectionID {
			return true
		}
	}
	return false
}

func (s *memoryState) pendingRequest(userID, organizationID string) (JoinRequest, bool) {
	for _, request := range s.joinRequests {
		if request.UserID == userID && request.OrganizationID == organizationID && request.Status == JoinRequestStatusPending {
			return request, true
		}
	}
	return JoinRequest{}, false
}

type memoryOrganizationStore struct{ state *memoryState }

func (m memoryOrganizationStore) Get(_ context.Context, id string) (Organization, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	organization, ok := m.state.organizations[id]
	if !ok {
		return Organization{}, fmt.Errorf("%w: organization %q", ErrNotFound, id)
	}
	return organization, nil
}

func (m memoryOrganizationStore) GetByName(_ context.Context, name string) (Organization, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	for _, organization := range m.state.organizations {
		if organization.Name == name {
			return organization, nil
		}
	}
	return Organization{}, fmt.Errorf("%w: organization named %q", ErrNotFound, name)
}

type memoryMembershipStore struct{ state *memoryState }

func (m memoryMembershipStore) FindByUser(_ context.Context, userID string) (Membership, bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	membership, ok := m.state.membershipByUser(userID)
	return membership, ok, nil
}

func (m memoryMembershipStore) FindByUserAndOrg(_ context.Context, userID, organizationID string) (Membership, bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	for _, membership := range m.state.memberships {
		if membership.UserID == userID && membership.OrganizationID == organizationID {
			return membership, true, nil
		}
	}
	return Membership{}, false, nil
}

func (m memoryMembershipStore) ListByOrganization(_ context.Context, organizationID string) ([]Membership, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	out := []Membership{}
	for _, membership := range m.state.memberships {
		if membership.OrganizationID == organizationID {
			out = append(out, membership)
		}
	}
	return out, nil
}

type memoryConnectionStore struct{ state *memoryState }

func (m memoryConnectionStore) Get(_ context.Context, id string) (Connection, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	connection, ok := m.state.connections[id]
	if !ok {
		return Connection{}, fmt.Errorf("%w: connection %q", ErrNotFound, id)
	}
	return connection, nil
}

func (m memoryConnectionStore) GetByUniqueIdentifier(_ context.Context, identifier string) (Connection, bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	connection, ok := m.state.connectionByIdentifier(identifier)
	return connection, ok, nil
}

func (m memoryConnectionStore) ListByOrganization(_ context.Context, organizationID string) ([]Connection, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	out := []Connection{}
	for _, link := range m.state.links {
		if link.OrganizationID != organizationID {
			continue
		}
		if connection, ok := m.state.connections[link.ConnectionID]; ok {
			out = append(out, connection)
		}
	}
	return out, nil
}

type memoryLinkStore struct{ state *memoryState }

func (m memoryLinkStore) ListOwners(_ context.Context, connectionID string) ([]Organization, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.ownersOf(connectionID), nil
}

func (m memoryLinkStore) Exists(_ context.Context, organizationID, connectionID string) (bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.linkExists(organizationID, connectionID), nil
}

func (m memoryLinkStore) CountByOrganization(_ context.Context, organizationID string) (int, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	count := 0
	for _, link := range m.state.links {
		if link.OrganizationID == organizationID {
			count++
		}
	}
	return count, nil
}

type memoryJoinRequestStore struct{ state *memoryState }

func (m memoryJoinRequestStore) Get(_ context.Context, id string) (JoinRequest, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	request, ok := m.state.joinRequests[id]
	if !ok {
		return JoinRequest{}, fmt.Errorf("%w: join request %q", ErrNotFound, id)
	}
	return request, nil
}

func (m memoryJoinRequestStore) FindPending(_ context.Context, userID, organizationID string) (JoinRequest, bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	request, ok := m.state.pendingRequest(userID, organizationID)
	return request, ok, nil
}

func (m memoryJoinRequestStore) ListByOrganization(_ context.Context, organizationID string) ([]JoinRequest, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	out := []JoinRequest{}
	for _, request := range m.state.joinRequests {
		if request.OrganizationID == organizationID {
			out = append(out, request)
		}
	}
	return out, nil
}

func (m memoryJoinRequestStore) ListPendingByOrganization(_ context.Context, organizationID string) ([]JoinRequest, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	out := []JoinRequest{}
	for _, request := range m.state.joinRequests {
		if request.OrganizationID == organizationID && request.Status == JoinRequestStatusPending {
			out = append(out, request)
		}
	}
	return out, nil
}

type memoryUserStore struct{ state *memoryState }

func (m memoryUserStore) Get(_ context.Context, id string) (User, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	user, ok := m.state.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %q", ErrNotFound, id)
	}
	return user, nil
}

func (m memoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	for _, user := range m.state.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, fmt.Errorf("%w: user with email %q", ErrNotFound, email)
}

// memoryProvisioner mirrors the transactional semantics of the SQL
// provisioner: single lock per operation, re-validated reads, conflicts on
// the same uniqueness rules.
type memoryProvisioner struct{ state *memoryState }

func (p memoryProvisioner) CreateOrganizationWithConnection(_ context.Context, in CreateOrganizationInput) (ProvisionResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	if _, exists := p.state.membershipByUser(in.CallerID); exists {
		return ProvisionResult{}, fmt.Errorf("%w: user %q already belongs to an organization", ErrConflict, in.CallerID)
	}
	if _, exists := p.state.connectionByIdentifier(in.UniqueIdentifier); exists {
		return ProvisionResult{}, fmt.Errorf("%w: connection %q already exists", ErrConflict, in.UniqueIdentifier)
	}
	now := time.Now().UTC()
	organization := Organization{ID: p.state.nextID("org"), Name: in.OrganizationName, CreatedAt: now}
	membership := Membership{ID: p.state.nextID("mem"), UserID: in.CallerID, OrganizationID: organization.ID, Role: RoleAdmin, CreatedAt: now}
	connection := Connection{
		ID:                   p.state.nextID("conn"),
		UniqueIdentifier:     in.UniqueIdentifier,
		Type:                 in.ConnectionType,
		Name:                 in.ConnectionName,
		CreatedBy:            in.CallerID,
		EncryptedCredentials: append([]byte(nil), in.EncryptedCredentials...),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	link := OrganizationConnection{ID: p.state.nextID("link"), OrganizationID: organization.ID, ConnectionID: connection.ID, AddedBy: in.CallerID, CreatedAt: now}
	p.state.organizations[organization.ID] = organization
	p.state.memberships[membership.ID] = membership
	p.state.connections[connection.ID] = connection
	p.state.links = append(p.state.links, link)
	return ProvisionResult{Organization: organization, Membership: membership, Connection: connection, Link: link}, nil
}

func (p memoryProvisioner) AttachNewConnection(_ context.Context, in AttachConnectionInput) (ProvisionResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	organization, ok := p.state.organizations[in.OrganizationID]
	if !ok {
		return ProvisionResult{}, fmt.Errorf("%w: organization %q", ErrNotFound, in.OrganizationID)
	}
	if _, exists := p.state.connectionByIdentifier(in.UniqueIdentifier); exists {
		return ProvisionResult{}, fmt.Errorf("%w: connection %q already exists", ErrConflict, in.UniqueIdentifier)
	}
	now := time.Now().UTC()
	connection := Connection{
		ID:                   p.state.nextID("conn"),
		UniqueIdentifier:     in.UniqueIdentifier,
		Type:                 in.ConnectionType,
		Name:                 in.ConnectionName,
		CreatedBy:            in.CallerID,
		EncryptedCredentials: append([]byte(nil), in.EncryptedCredentials...),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	link := OrganizationConnection{ID: p.state.nextID("link"), OrganizationID: organization.ID, ConnectionID: connection.ID, AddedBy: in.CallerID, CreatedAt: now}
	p.state.connections[connection.ID] = connection
	p.state.links = append(p.state.links, link)
	return ProvisionResult{Organization: organization, Connection: connection, Link: link}, nil
}

func (p memoryProvisioner) LinkExistingConnection(_ context.Context, in LinkConnectionInput) (LinkResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	connection, ok := p.state.connections[in.ConnectionID]
	if !ok {
		return LinkResult{}, fmt.Errorf("%w: connection %q", ErrNotFound, in.ConnectionID)
	}
	if p.state.linkExists(in.OrganizationID, in.ConnectionID) {
		return LinkResult{}, fmt.Errorf("%w: link already exists", ErrConflict)
	}
	now := time.Now().UTC()
	out := LinkResult{}
	if len(p.state.ownersOf(in.ConnectionID)) == 0 && len(in.ReclaimCredentials) > 0 {
		connection.EncryptedCredentials = append([]byte(nil), in.ReclaimCredentials...)
		connection.UpdatedAt = now
		p.state.connections[connection.ID] = connection
		out.Reclaimed = true
	}
	link := OrganizationConnection{ID: p.state.nextID("link"), OrganizationID: in.OrganizationID, ConnectionID: in.ConnectionID, AddedBy: in.CallerID, CreatedAt: now}
	p.state.links = append(p.state.links, link)
	out.Link = link
	out.Connection = connection
	return out, nil
}

func (p memoryProvisioner) EnqueueJoinRequest(_ context.Context, in EnqueueJoinRequestInput) (EnqueueJoinRequestResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	if existing, ok := p.state.pendingRequest(in.UserID, in.OrganizationID); ok {
		return EnqueueJoinRequestResult{Request: existing, AlreadyPending: true}, nil
	}
	now := time.Now().UTC()
	request := JoinRequest{ID: p.state.nextID("jr"), UserID: in.UserID, OrganizationID: in.OrganizationID, Status: JoinRequestStatusPending, CreatedAt: now, UpdatedAt: now}
	p.state.joinRequests[request.ID] = request
	return EnqueueJoinRequestResult{Request: request}, nil
}

func (p memoryProvisioner) DecideJoinRequest(_ context.Context, in DecideJoinRequestInput) (DecideJoinRequestResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	request, ok := p.state.joinRequests[in.RequestID]
	if !ok {
		return DecideJoinRequestResult{}, fmt.Errorf("%w: join request %q", ErrNotFound, in.RequestID)
	}
	if request.Status != JoinRequestStatusPending {
		return DecideJoinRequestResult{}, fmt.Errorf("%w: request %s is %s", ErrAlreadyProcessed, request.ID, request.Status)
	}
	now := time.Now().UTC()
	target := JoinRequestStatusDenied
	if in.Action == DecisionApprove {
		target = JoinRequestStatusApproved
	}
	if err := request.TransitionTo(target, now); err != nil {
		return DecideJoinRequestResult{}, err
	}
	p.state.joinRequests[request.ID] = request
	out := DecideJoinRequestResult{Request: request}
	if in.Action == DecisionApprove {
		membership := Membership{ID: p.state.nextID("mem"), UserID: request.UserID, OrganizationID: request.OrganizationID, Role: RoleMember, CreatedAt: now}
		p.state.memberships[membership.ID] = membership
		out.Membership = &membership
	}
	return out, nil
}

func (p memoryProvisioner) RemoveConnection(_ context.Context, in RemoveConnectionInput) (RemoveConnectionResult, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	orgLinks := 0
	for _, link := range p.state.links {
		if link.OrganizationID == in.OrganizationID {
			orgLinks++
		}
	}
	if orgLinks <= 1 {
		return RemoveConnectionResult{}, ErrLastConnectionLink
	}
	out := RemoveConnectionResult{}
	next := p.state.links[:0]
	for _, link := range p.state.links {
		if link.OrganizationID == in.OrganizationID && link.ConnectionID == in.ConnectionID {
			out.Unlinked = true
			continue
		}
		next = append(next, link)
	}
	p.state.links = next
	if !out.Unlinked {
		return RemoveConnectionResult{}, fmt.Errorf("%w: link for connection %q", ErrNotFound, in.ConnectionID)
	}
	if len(p.state.ownersOf(in.ConnectionID)) == 0 {
		delete(p.state.connections, in.ConnectionID)
		out.ConnectionDeleted = true
	}
	return out, nil
}

func newTestService(t *testing.T, state *memoryState, extra ...Option) *Service {
	t.Helper()
	options := []Option{
		WithLogger(stubLogger{}),
		WithSecretProvider(testSecretProvider{}),
		WithOrganizationStore(memoryOrganizationStore{state: state}),
		WithMembershipStore(memoryMembershipStore{state: state}),
		WithConnectionStore(memoryConnectionStore{state: state}),
		WithLinkStore(memoryLinkStore{state: state}),
		WithJoinRequestStore(memoryJoinRequestStore{state: state}),
		WithUserStore(memoryUserStore{state: state}),
		WithProvisioner(memoryProvisioner{state: state}),
	}
	options = append(options, extra...)
	svc, err := NewService(Config{}, options...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func testDescriptor(orgName string) ConnectionDescriptor {
	return ConnectionDescriptor{
		URL:              "https://looker.acme.example/",
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		OrganizationName: orgName,
	}
}
