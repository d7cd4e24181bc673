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

package modules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivegrid/platform/backup"
	"hivegrid/platform/catalog"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

type singleTenant struct {
	tenant *types.Tenant
}

func (s *singleTenant) GetByID(ctx context.Context, id string) (*types.Tenant, error) {
	if s.tenant != nil && s.tenant.ID == id {
		return s.tenant, nil
	}
	return nil, store.ErrTenantNotFound
}

type overageEvent struct {
	tenantID string
	moduleID string
	metric   string
	value    int64
	limit    int64
}

type captureNotifier struct {
	mu     sync.Mutex
	events []overageEvent
}

func (n *captureNotifier) NotifyOverage(tenantID, moduleID, metric string, value, limit int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, overageEvent{tenantID, moduleID, metric, value, limit})
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type fixture struct {
	manager  *Manager
	registry *store.Registry
	modules  *catalog.ModuleStore
	notifier *captureNotifier
	tenantID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	tenant, err := types.NewTenant("t-1", "Acme Health", "acme", types.PlanStandard)
	require.NoError(t, err)

	registry := store.NewRegistry(store.RegistryConfig{
		BaseAddress: "mem://cluster/platform",
		Tenants:     &singleTenant{tenant: tenant},
		Open:        store.OpenMemory,
	})

	catalogConn := store.NewMemoryConn("platform")
	moduleStore := catalog.NewModuleStore(catalogConn)
	require.NoError(t, moduleStore.Seed(ctx, []types.Module{
		{Name: "healthcare", Collections: []string{"hospitals", "doctors"}},
		{Name: "reporting", Dependencies: []string{"healthcare"}, Collections: []string{"reports"}},
	}))

	notifier := &captureNotifier{}
	manager := NewManager(ManagerConfig{
		Registry:    registry,
		Modules:     moduleStore,
		Activations: catalog.NewActivationStore(catalogConn),
		Archiver:    backup.NewEngine(registry, backup.NewFSStore(t.TempDir()), nil),
		Notifier:    notifier,
	})

	return &fixture{
		manager:  manager,
		registry: registry,
		modules:  moduleStore,
		notifier: notifier,
		tenantID: tenant.ID,
	}
}

func (f *fixture) moduleID(t *testing.T, name string) string {
	t.Helper()
	mod, err := f.modules.GetByName(context.Background(), name)
	require.NoError(t, err)
	return mod.ID
}

func TestActivateUnknownModule(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Activate(context.Background(), f.tenantID, "nope", nil)
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestActivateCreatesOwnedCollections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, f.moduleID(t, "healthcare"), nil))

	conn, err := f.registry.GetOrOpen(ctx, f.tenantID)
	require.NoError(t, err)
	names, err := conn.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "hospitals")
	assert.Contains(t, names, "doctors")
}

func TestActivateTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))
	err := f.manager.Activate(ctx, f.tenantID, id, nil)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestDependencyOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	healthcare := f.moduleID(t, "healthcare")
	reporting := f.moduleID(t, "reporting")

	// Dependency first, no partial activation.
	err := f.manager.Activate(ctx, f.tenantID, reporting, nil)
	assert.ErrorIs(t, err, ErrDependencyNotActive)

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, healthcare, nil))
	require.NoError(t, f.manager.Activate(ctx, f.tenantID, reporting, nil))

	// Cannot pull a module out from under its dependents.
	err = f.manager.Deactivate(ctx, f.tenantID, healthcare, false)
	assert.ErrorIs(t, err, ErrDependentModulesActive)

	require.NoError(t, f.manager.Deactivate(ctx, f.tenantID, reporting, false))
	require.NoError(t, f.manager.Deactivate(ctx, f.tenantID, healthcare, false))
}

func TestDeactivateInactiveFails(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Deactivate(context.Background(), f.tenantID, f.moduleID(t, "healthcare"), false)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestDeactivateBackupThenReactivateRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))

	conn, err := f.registry.GetOrOpen(ctx, f.tenantID)
	require.NoError(t, err)
	_, err = conn.Collection("hospitals").InsertOne(ctx, store.M{"_id": "h-1", "name": "General"})
	require.NoError(t, err)
	_, err = conn.Collection("hospitals").InsertOne(ctx, store.M{"_id": "h-2", "name": "Mercy"})
	require.NoError(t, err)

	require.NoError(t, f.manager.Deactivate(ctx, f.tenantID, id, true))

	// Writes between cycles are discarded by the restore.
	_, err = conn.Collection("hospitals").DeleteMany(ctx, store.M{})
	require.NoError(t, err)
	_, err = conn.Collection("hospitals").InsertOne(ctx, store.M{"_id": "h-3", "name": "Stray"})
	require.NoError(t, err)

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))

	count, err := conn.Collection("hospitals").Count(ctx, store.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var doc store.M
	require.NoError(t, conn.Collection("hospitals").FindOne(ctx, store.M{"_id": "h-1"}, &doc))
	assert.Equal(t, "General", doc["name"])
}

func TestDeactivateWithoutBackupLeavesNoPointer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))
	require.NoError(t, f.manager.Deactivate(ctx, f.tenantID, id, false))

	conn, err := f.registry.GetOrOpen(ctx, f.tenantID)
	require.NoError(t, err)
	_ = conn

	// Reactivation with no snapshot still succeeds.
	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))
}

func TestUpdateUsageStatRequiresActive(t *testing.T) {
	f := newFixture(t)
	err := f.manager.UpdateUsageStat(context.Background(), f.tenantID, f.moduleID(t, "healthcare"), "currentHospitals", 1)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUsageOverageNotifiesWithoutBlocking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, types.QuotaLimits{"maxHospitals": 2}))

	// Within quota, no notification.
	require.NoError(t, f.manager.UpdateUsageStat(ctx, f.tenantID, id, "currentHospitals", 2))

	// Over quota, write still succeeds and the notifier fires.
	require.NoError(t, f.manager.UpdateUsageStat(ctx, f.tenantID, id, "currentHospitals", 3))
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 5*time.Millisecond)

	exceeded, err := f.manager.HasExceededQuota(ctx, f.tenantID, "healthcare", "hospitals")
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestHasExceededQuotaUnlimitedWhenAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))
	require.NoError(t, f.manager.UpdateUsageStat(ctx, f.tenantID, id, "currentHospitals", 1000000))

	exceeded, err := f.manager.HasExceededQuota(ctx, f.tenantID, "healthcare", "hospitals")
	require.NoError(t, err)
	assert.False(t, exceeded)
}

func TestHasExceededQuotaInactiveModule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	exceeded, err := f.manager.HasExceededQuota(ctx, f.tenantID, "healthcare", "hospitals")
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestHasModuleAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.moduleID(t, "healthcare")

	allowed, err := f.manager.HasModuleAccess(ctx, f.tenantID, "healthcare")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, f.manager.Activate(ctx, f.tenantID, id, nil))

	allowed, err = f.manager.HasModuleAccess(ctx, f.tenantID, "healthcare")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, f.manager.Deactivate(ctx, f.tenantID, id, false))

	allowed, err = f.manager.HasModuleAccess(ctx, f.tenantID, "healthcare")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasModuleAccessUnknownModule(t *testing.T) {
	f := newFixture(t)
	allowed, err := f.manager.HasModuleAccess(context.Background(), f.tenantID, "time-travel")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanonicalMetric(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"maxHospitals", "hospitals"},
		{"currentHospitals", "hospitals"},
		{"hospitals", "hospitals"},
		{"maxStorageMB", "storageMB"},
		{"maximum", "maximum"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := canonicalMetric(tt.in); got != tt.want {
			t.Errorf("canonicalMetric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchLimitEmptyMetric(t *testing.T) {
	quota := types.QuotaLimits{"maxHospitals": 2}

	if _, ok := matchLimit(quota, ""); ok {
		t.Error("empty metric must not match any quota key")
	}
	if _, ok := matchStat(types.UsageStats{"currentHospitals": 1}, ""); ok {
		t.Error("empty metric must not match any usage key")
	}
}
