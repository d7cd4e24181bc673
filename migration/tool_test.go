// Copyright 2025 HiveGrid
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package migration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hivegrid/platform/catalog"
	"hivegrid/platform/provision"
	"hivegrid/platform/schema"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// persistentOpener hands out the same in-memory store per address so a
// re-provisioned tenant sees its earlier data, the way a real backend
// would. Close on the handle is swallowed so cache replacement does not
// tear the shared state down.
type persistentOpener struct {
	mu     sync.Mutex
	stores map[string]store.Conn
}

type noCloseConn struct {
	store.Conn
}

func (noCloseConn) Close(context.Context) error { return nil }

func newPersistentOpener() *persistentOpener {
	return &persistentOpener{stores: make(map[string]store.Conn)}
}

func (p *persistentOpener) open(ctx context.Context, address string) (store.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.stores[address]; ok {
		return noCloseConn{conn}, nil
	}
	conn, err := store.OpenMemory(ctx, address)
	if err != nil {
		return nil, err
	}
	p.stores[address] = conn
	return noCloseConn{conn}, nil
}

type harness struct {
	tool     *Tool
	registry *store.Registry
	shared   store.Conn
	tenants  *catalog.TenantStore
	tenant   *types.Tenant
	confirm  bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	catalogConn := store.NewMemoryConn("platform")
	tenants := catalog.NewTenantStore(catalogConn)

	tenant, err := types.NewTenant("t-1", "Acme Health", "acme", types.PlanStandard)
	require.NoError(t, err)
	require.NoError(t, tenants.Create(ctx, tenant))

	h := &harness{shared: catalogConn, tenants: tenants, tenant: tenant}

	registry := store.NewRegistry(store.RegistryConfig{
		BaseAddress: "mem://cluster/platform",
		Tenants:     tenants,
		Open:        newPersistentOpener().open,
		Bind:        schema.EnsureBaseline,
	})
	h.registry = registry

	h.tool = NewTool(Config{
		Registry:    registry,
		Tenants:     tenants,
		Initializer: provision.NewInitializer(registry, nil),
		Shared:      catalogConn,
		Confirm:     func(*types.Tenant) bool { return h.confirm },
	})
	return h
}

// seedShared writes legacy users and audit logs for a tenant into the
// shared store and returns the legacy user ids.
func seedShared(t *testing.T, shared store.Conn, tenantID string, users, logs int) []string {
	t.Helper()
	ctx := context.Background()

	var userIDs []string
	for i := 0; i < users; i++ {
		userType := schema.UserTypeUser
		if i == 0 {
			userType = schema.UserTypeAdmin
		}
		hash, err := schema.HashPassword(fmt.Sprintf("pw-%d", i))
		require.NoError(t, err)
		id := fmt.Sprintf("legacy-u-%d", i)
		_, err = shared.Collection(schema.CollectionUsers).InsertOne(ctx, store.M{
			"_id":           id,
			"tenant_id":     tenantID,
			"email":         fmt.Sprintf("user%d@acme.example", i),
			"password_hash": hash,
			"first_name":    fmt.Sprintf("User%d", i),
			"user_type":     userType,
		})
		require.NoError(t, err)
		userIDs = append(userIDs, id)
	}

	for i := 0; i < logs; i++ {
		_, err := shared.Collection(schema.CollectionAuditLogs).InsertOne(ctx, store.M{
			"_id":       fmt.Sprintf("legacy-l-%d", i),
			"tenant_id": tenantID,
			"user_id":   userIDs[i%len(userIDs)],
			"action":    "record.updated",
		})
		require.NoError(t, err)
	}
	return userIDs
}

func TestMigrateOneRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 3, 10)

	result, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Users)
	assert.Equal(t, 10, result.AuditLogs)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	set := schema.Bind(conn)

	users, err := set.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	// Password hashes survive byte for byte.
	newIDs := make(map[string]bool, len(users))
	for _, u := range users {
		newIDs[u.ID] = true
		var i int
		_, err := fmt.Sscanf(u.Email, "user%d@acme.example", &i)
		require.NoError(t, err)
		assert.True(t, schema.VerifyPassword(u.PasswordHash, fmt.Sprintf("pw-%d", i)))
	}

	// Every audit entry references a valid isolated-store user.
	entries, err := set.AuditLogs.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for _, e := range entries {
		assert.True(t, newIDs[e.UserID], "audit log references unknown user %s", e.UserID)
	}
}

func TestMigrateOneAssignsRolesByUserType(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 2, 0)

	_, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	set := schema.Bind(conn)

	adminRole, err := set.Roles.GetByName(ctx, provision.RoleTenantAdmin)
	require.NoError(t, err)
	userRole, err := set.Roles.GetByName(ctx, provision.RoleTenantUser)
	require.NoError(t, err)

	admin, err := set.Users.GetByEmail(ctx, "user0@acme.example")
	require.NoError(t, err)
	links, err := set.UserRoles.ListForUser(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, adminRole.ID, links[0].RoleID)

	regular, err := set.Users.GetByEmail(ctx, "user1@acme.example")
	require.NoError(t, err)
	links, err = set.UserRoles.ListForUser(ctx, regular.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, userRole.ID, links[0].RoleID)
}

func TestMigrateOneRemapsObjectIDReferences(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// Stores written by the legacy application key users by ObjectID.
	legacyID := primitive.NewObjectID()
	hash, err := schema.HashPassword("pw-oid")
	require.NoError(t, err)
	_, err = h.shared.Collection(schema.CollectionUsers).InsertOne(ctx, store.M{
		"_id":           legacyID,
		"tenant_id":     h.tenant.ID,
		"email":         "oid@acme.example",
		"password_hash": hash,
		"user_type":     schema.UserTypeAdmin,
	})
	require.NoError(t, err)
	_, err = h.shared.Collection(schema.CollectionAuditLogs).InsertOne(ctx, store.M{
		"_id":       primitive.NewObjectID(),
		"tenant_id": h.tenant.ID,
		"user_id":   legacyID,
		"action":    "record.created",
	})
	require.NoError(t, err)

	result, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Users)
	assert.Equal(t, 1, result.AuditLogs)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	set := schema.Bind(conn)

	user, err := set.Users.GetByEmail(ctx, "oid@acme.example")
	require.NoError(t, err)

	entries, err := set.AuditLogs.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, user.ID, entries[0].UserID,
		"ObjectID reference must remap onto the new user id")
}

func TestMigrateOneFallsBackOnUnmappableReference(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 1, 1)
	_, err := h.shared.Collection(schema.CollectionAuditLogs).InsertOne(ctx, store.M{
		"_id":       "legacy-l-orphan",
		"tenant_id": h.tenant.ID,
		"user_id":   "legacy-u-ghost",
		"action":    "record.deleted",
	})
	require.NoError(t, err)

	result, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AuditLogs)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	entries, err := schema.Bind(conn).AuditLogs.List(ctx)
	require.NoError(t, err)

	var orphaned bool
	for _, e := range entries {
		if e.UserID == "legacy-u-ghost" {
			orphaned = true
		}
	}
	assert.True(t, orphaned, "orphaned reference should keep the original foreign key")
}

func TestMigrateOnePromptsBeforeOverwrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 2, 0)

	_, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)

	// Second run finds data; operator declines.
	h.confirm = false
	_, err = h.tool.MigrateOne(ctx, h.tenant)
	assert.ErrorIs(t, err, ErrMigrationAborted)

	// Operator accepts; the store is rebuilt without duplicates.
	h.confirm = true
	result, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Users)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	count, err := schema.Bind(conn).Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMigrateAllIsolatesTenantFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 1, 0)

	// A second tenant whose store is pre-populated; confirm declines,
	// so only this tenant fails.
	other, err := types.NewTenant("t-2", "Globex", "globex", types.PlanFree)
	require.NoError(t, err)
	require.NoError(t, h.tenants.Create(ctx, other))
	seedShared(t, h.shared, other.ID, 1, 0)
	_, err = h.tool.MigrateOne(ctx, other)
	require.NoError(t, err)

	h.confirm = false
	report, err := h.tool.MigrateAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, []string{"globex"}, report.Failed())

	for _, res := range report.Results {
		if res.Subdomain == "acme" {
			assert.NoError(t, res.Err)
			assert.Equal(t, 1, res.Users)
		}
	}
}

func TestValidateAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 2, 3)

	_, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)

	results, err := h.tool.ValidateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), "issues: %v", results[0].Issues)

	// Break the store and validate again.
	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	require.NoError(t, conn.Collection(schema.CollectionUsers).Drop(ctx))

	results, err = h.tool.ValidateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Contains(t, results[0].Issues, "missing collection users")
}

func TestFixTenantDatabase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedShared(t, h.shared, h.tenant.ID, 1, 0)

	_, err := h.tool.MigrateOne(ctx, h.tenant)
	require.NoError(t, err)

	conn, err := h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	require.NoError(t, conn.Collection(schema.CollectionRoles).Drop(ctx))

	creds := types.AdminCredentials{
		Email:     "rescue@acme.example",
		Password:  "rescue-pass",
		FirstName: "Rae",
		LastName:  "Rescue",
	}
	require.NoError(t, h.tool.FixTenantDatabase(ctx, "acme", creds))

	conn, err = h.registry.GetOrOpen(ctx, h.tenant.ID)
	require.NoError(t, err)
	set := schema.Bind(conn)

	roles, err := set.Roles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	results, err := h.tool.ValidateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), "issues: %v", results[0].Issues)
}

func TestFixUnknownSubdomain(t *testing.T) {
	h := newHarness(t)
	err := h.tool.FixTenantDatabase(context.Background(), "nope", types.AdminCredentials{
		Email:    "a@b.c",
		Password: "pw",
	})
	assert.Error(t, err)
}
