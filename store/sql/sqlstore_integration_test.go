package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-onboarding/core"
	onboardingmigrations "github.com/goliatone/go-onboarding/migrations"
	"github.com/goliatone/go-onboarding/security"
	sqlstore "github.com/goliatone/go-onboarding/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-onboarding-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:onboarding-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = onboardingmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != onboardingmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, onboardingmigrations.WithValidationTargets(onboardingmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newOnboardingService(t *testing.T, client *persistence.Client) (*core.Service, *sqlstore.RepositoryFactory) {
	t.Helper()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	vault, err := security.NewAppKeySecretProviderFromString("onboarding-integration-test-key")
	if err != nil {
		t.Fatalf("new secret provider: %v", err)
	}
	svc, err := core.NewService(core.Config{},
		core.WithSecretProvider(vault),
		core.WithRepositoryFactory(factory),
		core.WithPersistenceClient(client),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, factory
}

func seedUser(t *testing.T, client *persistence.Client, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := client.DB().ExecContext(context.Background(),
		"INSERT INTO onboarding_users (id, email, name) VALUES (?, ?, ?)",
		id, id+"@example.test", name,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return id
}

func seedOrphanConnection(t *testing.T, client *persistence.Client, createdBy, identifier string, credentials []byte) string {
	t.Helper()
	id := uuid.NewString()
	_, err := client.DB().ExecContext(context.Background(),
		"INSERT INTO onboarding_connections (id, unique_identifier, type, name, created_by, encrypted_credentials) VALUES (?, ?, 'looker', ?, ?, ?)",
		id, identifier, "Looker - seeded", createdBy, credentials,
	)
	if err != nil {
		t.Fatalf("seed orphan connection: %v", err)
	}
	return id
}

func lookerDescriptor(url, organizationName string) core.ConnectionDescriptor {
	return core.ConnectionDescriptor{
		URL:              url,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		OrganizationName: organizationName,
	}
}

func requireTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T: %v", err, err)
	}
	if richErr.TextCode != textCode {
		t.Fatalf("expected text code %s, got %s (%v)", textCode, richErr.TextCode, err)
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"onboarding_users",
		"onboarding_organizations",
		"onboarding_memberships",
		"onboarding_connections",
		"onboarding_organization_connections",
		"onboarding_join_requests",
	} {
		var name string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &name); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if name != table {
			t.Fatalf("expected %s table, got %q", table, name)
		}
	}
}

func TestSubmitConnection_PromptForOrganizationNameWritesNothing(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	userID := seedUser(t, client, "newcomer")

	outcome, err := svc.SubmitConnection(ctx, userID, lookerDescriptor("https://looker.fresh.example", ""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Kind != core.OutcomeRequiresOrganizationName {
		t.Fatalf("expected %s, got %s", core.OutcomeRequiresOrganizationName, outcome.Kind)
	}

	for _, table := range []string{"onboarding_organizations", "onboarding_connections", "onboarding_organization_connections", "onboarding_join_requests"} {
		var count int
		if err := client.DB().NewRaw("SELECT COUNT(*) FROM "+table).Scan(ctx, &count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("prompting must write nothing, %s has %d rows", table, count)
		}
	}
}

func TestSubmitConnection_CreatesOrganizationEndToEnd(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	userID := seedUser(t, client, "founder")

	outcome, err := svc.SubmitConnection(ctx, userID, lookerDescriptor("https://looker.acme.example/", "Acme"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Kind != core.OutcomeOrganizationCreated {
		t.Fatalf("expected %s, got %s", core.OutcomeOrganizationCreated, outcome.Kind)
	}
	if outcome.Organization == nil || outcome.Organization.Name != "Acme" {
		t.Fatalf("unexpected organization: %+v", outcome.Organization)
	}

	membership, organization, found, err := svc.GetMembership(ctx, userID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if !found || !membership.IsAdmin() || organization.ID != outcome.Organization.ID {
		t.Fatalf("founder must be admin of the new organization: %+v %+v", membership, organization)
	}

	connections, err := svc.ListConnections(ctx, userID)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(connections) != 1 {
		t.Fatalf("expected one connection, got %d", len(connections))
	}
	stored := connections[0]
	if stored.UniqueIdentifier != "https://looker.acme.example" {
		t.Fatalf("trailing slash must be stripped, got %q", stored.UniqueIdentifier)
	}
	if strings.Contains(string(stored.EncryptedCredentials), "client-secret") {
		t.Fatal("stored credentials must not contain the plaintext secret")
	}
	if !strings.HasPrefix(string(stored.EncryptedCredentials), "onboarding.secret.v1:") {
		t.Fatalf("stored credentials must be a vault envelope, got %q", string(stored.EncryptedCredentials[:24]))
	}

	bundle, err := svc.RevealCredentials(ctx, userID, stored.ID)
	if err != nil {
		t.Fatalf("reveal credentials: %v", err)
	}
	if bundle.ClientSecret != "client-secret" || bundle.ClientID != "client-id" {
		t.Fatalf("credential bundle did not round-trip: %+v", bundle)
	}
}

func TestSubmitConnection_DuplicateIdentifierYieldsSingleConnection(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, factory := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	joiner := seedUser(t, client, "joiner")

	first, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.acme.example", "Acme"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Kind != core.OutcomeOrganizationCreated {
		t.Fatalf("expected %s, got %s", core.OutcomeOrganizationCreated, first.Kind)
	}

	// Same instance submitted by another user, including the equivalent URL
	// with a trailing slash.
	second, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example/", "Other"))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Kind != core.OutcomeJoinRequestSent {
		t.Fatalf("expected %s, got %s", core.OutcomeJoinRequestSent, second.Kind)
	}
	if second.Organization == nil || second.Organization.ID != first.Organization.ID {
		t.Fatalf("join request must target the owning organization: %+v", second.Organization)
	}

	var count int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM onboarding_connections").Scan(ctx, &count); err != nil {
		t.Fatalf("count connections: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single connection row, got %d", count)
	}

	// Direct provisioner attempt with the same identifier loses to the unique
	// constraint and surfaces as a conflict.
	_, err = factory.Provisioner().AttachNewConnection(ctx, core.AttachConnectionInput{
		OrganizationID:       first.Organization.ID,
		CallerID:             founder,
		UniqueIdentifier:     "https://looker.acme.example",
		ConnectionType:       "looker",
		ConnectionName:       "Looker - looker.acme.example",
		EncryptedCredentials: []byte("onboarding.secret.v1:duplicate"),
	})
	if !core.IsConflict(err) {
		t.Fatalf("expected conflict from duplicate identifier, got %v", err)
	}
}

func TestSubmitConnection_PendingJoinRequestDeduplicates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	joiner := seedUser(t, client, "joiner")

	if _, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.acme.example", "Acme")); err != nil {
		t.Fatalf("founder submit: %v", err)
	}

	first, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example", ""))
	if err != nil {
		t.Fatalf("joiner submit: %v", err)
	}
	if first.Kind != core.OutcomeJoinRequestSent {
		t.Fatalf("expected %s, got %s", core.OutcomeJoinRequestSent, first.Kind)
	}

	again, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example", ""))
	if err != nil {
		t.Fatalf("joiner resubmit: %v", err)
	}
	if again.Kind != core.OutcomeJoinRequestAlreadyPending {
		t.Fatalf("expected %s, got %s", core.OutcomeJoinRequestAlreadyPending, again.Kind)
	}

	var pending int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM onboarding_join_requests WHERE user_id = ? AND status = 'pending'",
		joiner,
	).Scan(ctx, &pending); err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected one pending join request, got %d", pending)
	}
}

func TestDecideJoinRequest_ApproveCreatesMembershipAtomically(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	joiner := seedUser(t, client, "joiner")

	if _, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.acme.example", "Acme")); err != nil {
		t.Fatalf("founder submit: %v", err)
	}
	submitted, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example", ""))
	if err != nil {
		t.Fatalf("joiner submit: %v", err)
	}
	if submitted.JoinRequest == nil {
		t.Fatal("expected join request")
	}

	// Non-admin decisions are rejected before any mutation.
	_, err = svc.DecideJoinRequest(ctx, joiner, submitted.JoinRequest.ID, core.DecisionApprove)
	requireTextCode(t, err, core.ErrorCodeForbidden)

	decision, err := svc.DecideJoinRequest(ctx, founder, submitted.JoinRequest.ID, core.DecisionApprove)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decision.Request.Status != core.JoinRequestStatusApproved {
		t.Fatalf("expected approved, got %s", decision.Request.Status)
	}
	if decision.Membership == nil || decision.Membership.Role != core.RoleMember {
		t.Fatalf("approval must create a member membership: %+v", decision.Membership)
	}

	membership, _, found, err := svc.GetMembership(ctx, joiner)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if !found || membership.Role != core.RoleMember {
		t.Fatalf("approved user must be a member: %+v", membership)
	}

	// Second decision on the same request reports already-processed to every
	// caller, admin or not.
	_, err = svc.DecideJoinRequest(ctx, founder, submitted.JoinRequest.ID, core.DecisionDeny)
	requireTextCode(t, err, core.ErrorCodeAlreadyProcessed)
}

func TestDecideJoinRequest_DenyLeavesUserWithoutMembership(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	joiner := seedUser(t, client, "joiner")

	if _, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.acme.example", "Acme")); err != nil {
		t.Fatalf("founder submit: %v", err)
	}
	submitted, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example", ""))
	if err != nil {
		t.Fatalf("joiner submit: %v", err)
	}

	decision, err := svc.DecideJoinRequest(ctx, founder, submitted.JoinRequest.ID, core.DecisionDeny)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if decision.Request.Status != core.JoinRequestStatusDenied {
		t.Fatalf("expected denied, got %s", decision.Request.Status)
	}
	if _, _, found, _ := svc.GetMembership(ctx, joiner); found {
		t.Fatal("denied user must not gain a membership")
	}

	// A denied request does not block a fresh submission.
	resubmitted, err := svc.SubmitConnection(ctx, joiner, lookerDescriptor("https://looker.acme.example", ""))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Kind != core.OutcomeJoinRequestSent {
		t.Fatalf("expected fresh join request, got %s", resubmitted.Kind)
	}
}

func TestSubmitConnection_OrphanReclaimReplacesCredentials(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	ghost := seedUser(t, client, "ghost")

	if _, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.first.example", "Acme")); err != nil {
		t.Fatalf("founder submit: %v", err)
	}
	stale := []byte("onboarding.secret.v1:stale-envelope")
	orphanID := seedOrphanConnection(t, client, ghost, "https://looker.orphan.example", stale)

	outcome, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.orphan.example", ""))
	if err != nil {
		t.Fatalf("reclaim submit: %v", err)
	}
	if outcome.Kind != core.OutcomeConnectionAdded {
		t.Fatalf("expected %s, got %s", core.OutcomeConnectionAdded, outcome.Kind)
	}

	bundle, err := svc.RevealCredentials(ctx, founder, orphanID)
	if err != nil {
		t.Fatalf("reveal reclaimed credentials: %v", err)
	}
	if bundle.ClientSecret != "client-secret" {
		t.Fatalf("expected reclaimed secret, got %q", bundle.ClientSecret)
	}

	var envelope []byte
	if err := client.DB().NewRaw(
		"SELECT encrypted_credentials FROM onboarding_connections WHERE id = ?",
		orphanID,
	).Scan(ctx, &envelope); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if string(envelope) == string(stale) {
		t.Fatal("orphan reclaim must replace the stale envelope")
	}
}

func TestSubmitConnection_OwnedConnectionCredentialsAreProtected(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	ownerAdmin := seedUser(t, client, "owner-admin")
	otherAdmin := seedUser(t, client, "other-admin")

	owned, err := svc.SubmitConnection(ctx, ownerAdmin, lookerDescriptor("https://looker.shared.example", "Owner Org"))
	if err != nil {
		t.Fatalf("owner submit: %v", err)
	}
	if _, err := svc.SubmitConnection(ctx, otherAdmin, lookerDescriptor("https://looker.other.example", "Other Org")); err != nil {
		t.Fatalf("other submit: %v", err)
	}

	var before []byte
	if err := client.DB().NewRaw(
		"SELECT encrypted_credentials FROM onboarding_connections WHERE id = ?",
		owned.Connection.ID,
	).Scan(ctx, &before); err != nil {
		t.Fatalf("read envelope: %v", err)
	}

	descriptor := lookerDescriptor("https://looker.shared.example", "")
	descriptor.ClientSecret = "attacker-secret"
	outcome, err := svc.SubmitConnection(ctx, otherAdmin, descriptor)
	if err != nil {
		t.Fatalf("link submit: %v", err)
	}
	if outcome.Kind != core.OutcomeConnectionAdded {
		t.Fatalf("expected %s, got %s", core.OutcomeConnectionAdded, outcome.Kind)
	}

	var after []byte
	if err := client.DB().NewRaw(
		"SELECT encrypted_credentials FROM onboarding_connections WHERE id = ?",
		owned.Connection.ID,
	).Scan(ctx, &after); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("linking an owned connection must not replace the owner's credentials")
	}

	bundle, err := svc.RevealCredentials(ctx, ownerAdmin, owned.Connection.ID)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if bundle.ClientSecret != "client-secret" {
		t.Fatalf("owner's secret must survive, got %q", bundle.ClientSecret)
	}
}

func TestRemoveConnection_LastLinkRejectedThenOrphanCollected(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	admin := seedUser(t, client, "admin")

	first, err := svc.SubmitConnection(ctx, admin, lookerDescriptor("https://looker.first.example", "Acme"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Single connection: removal refused.
	_, err = svc.RemoveConnection(ctx, admin, first.Connection.ID)
	requireTextCode(t, err, core.ErrorCodeConflict)

	second, err := svc.SubmitConnection(ctx, admin, lookerDescriptor("https://looker.second.example", ""))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	result, err := svc.RemoveConnection(ctx, admin, second.Connection.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !result.Unlinked || !result.ConnectionDeleted {
		t.Fatalf("expected unlink with garbage collection, got %+v", result)
	}

	var count int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM onboarding_connections WHERE id = ?",
		second.Connection.ID,
	).Scan(ctx, &count); err != nil {
		t.Fatalf("count connection: %v", err)
	}
	if count != 0 {
		t.Fatal("zero-link connection must be deleted with its credentials")
	}

	connections, err := svc.ListConnections(ctx, admin)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(connections) != 1 || connections[0].ID != first.Connection.ID {
		t.Fatalf("first connection must survive: %+v", connections)
	}
}

func TestRequestJoin_DirectQueueAndApproval(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	founder := seedUser(t, client, "founder")
	joiner := seedUser(t, client, "joiner")

	created, err := svc.SubmitConnection(ctx, founder, lookerDescriptor("https://looker.acme.example", "Acme"))
	if err != nil {
		t.Fatalf("founder submit: %v", err)
	}

	outcome, err := svc.RequestJoin(ctx, joiner, created.Organization.ID)
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if outcome.Kind != core.OutcomeJoinRequestSent {
		t.Fatalf("expected %s, got %s", core.OutcomeJoinRequestSent, outcome.Kind)
	}

	pending, err := svc.ListJoinRequests(ctx, founder, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].UserID != joiner {
		t.Fatalf("expected the joiner's pending request, got %+v", pending)
	}

	if _, err := svc.DecideJoinRequest(ctx, founder, pending[0].ID, core.DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Members cannot queue further join requests.
	_, err = svc.RequestJoin(ctx, joiner, created.Organization.ID)
	requireTextCode(t, err, core.ErrorCodeConflict)
}

func TestListOwners_OrderFixesJoinRequestTarget(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, factory := newOnboardingService(t, client)
	firstAdmin := seedUser(t, client, "first-admin")
	secondAdmin := seedUser(t, client, "second-admin")
	outsider := seedUser(t, client, "outsider")

	created, err := svc.SubmitConnection(ctx, firstAdmin, lookerDescriptor("https://looker.shared.example", "First Org"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitConnection(ctx, secondAdmin, lookerDescriptor("https://looker.second.example", "Second Org")); err != nil {
		t.Fatalf("second org submit: %v", err)
	}
	// Second org links the shared connection after the first.
	if _, err := svc.SubmitConnection(ctx, secondAdmin, lookerDescriptor("https://looker.shared.example", "")); err != nil {
		t.Fatalf("second link submit: %v", err)
	}

	owners, err := factory.LinkStore().ListOwners(ctx, created.Connection.ID)
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("expected two owners, got %d", len(owners))
	}
	if owners[0].ID != created.Organization.ID {
		t.Fatalf("first owner must be the earliest link, got %+v", owners)
	}

	outcome, err := svc.SubmitConnection(ctx, outsider, lookerDescriptor("https://looker.shared.example", ""))
	if err != nil {
		t.Fatalf("outsider submit: %v", err)
	}
	if outcome.Kind != core.OutcomeJoinRequestSent {
		t.Fatalf("expected %s, got %s", core.OutcomeJoinRequestSent, outcome.Kind)
	}
	if outcome.Organization == nil || outcome.Organization.ID != created.Organization.ID {
		t.Fatalf("join request must target the first owner, got %+v", outcome.Organization)
	}
}

func TestSubmitConnection_OrphanWithoutMembershipReportsContactAdmin(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	svc, _ := newOnboardingService(t, client)
	ghost := seedUser(t, client, "ghost")
	visitor := seedUser(t, client, "visitor")

	seedOrphanConnection(t, client, ghost, "https://looker.orphan.example", []byte("onboarding.secret.v1:stale"))

	outcome, err := svc.SubmitConnection(ctx, visitor, lookerDescriptor("https://looker.orphan.example", ""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Kind != core.OutcomeOrphanedConnection {
		t.Fatalf("expected %s, got %s", core.OutcomeOrphanedConnection, outcome.Kind)
	}

	var requests int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM onboarding_join_requests").Scan(ctx, &requests); err != nil {
		t.Fatalf("count join requests: %v", err)
	}
	if requests != 0 {
		t.Fatal("orphan reporting must not queue join requests")
	}
}
