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

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

func newTestConn() store.Conn {
	return store.NewMemoryConn("hivegrid")
}

func TestTenantStore(t *testing.T) {
	ctx := context.Background()
	tenants := NewTenantStore(newTestConn())

	acme, err := types.NewTenant("t1", "Acme", "acme", types.PlanStandard)
	require.NoError(t, err)
	dormant, err := types.NewTenant("t2", "Dormant", "dormant", types.PlanFree)
	require.NoError(t, err)
	dormant.Active = false

	require.NoError(t, tenants.Create(ctx, acme))
	require.NoError(t, tenants.Create(ctx, dormant))

	got, err := tenants.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Subdomain)

	got, err = tenants.GetBySubdomain(ctx, "dormant")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.ID)
	assert.False(t, got.Active)

	_, err = tenants.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrTenantNotFound)

	active, err := tenants.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t1", active[0].ID)
}

func TestModuleStoreSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	modules := NewModuleStore(newTestConn())

	seed := []types.Module{
		{Name: "healthcare", Collections: []string{"hospitals", "doctors"}},
		{Name: "reporting", Dependencies: []string{"healthcare"}, Collections: []string{"reports"}},
	}
	require.NoError(t, modules.Seed(ctx, seed))
	require.NoError(t, modules.Seed(ctx, seed))

	all, err := modules.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	healthcare, err := modules.GetByName(ctx, "healthcare")
	require.NoError(t, err)
	assert.NotEmpty(t, healthcare.ID)
	assert.Equal(t, []string{"hospitals", "doctors"}, healthcare.Collections)

	byID, err := modules.GetByID(ctx, healthcare.ID)
	require.NoError(t, err)
	assert.Equal(t, "healthcare", byID.Name)

	_, err = modules.GetByName(ctx, "billing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivationStoreUpsert(t *testing.T) {
	ctx := context.Background()
	activations := NewActivationStore(newTestConn())

	_, err := activations.Get(ctx, "t1", "m1")
	assert.ErrorIs(t, err, ErrNotFound)

	row := &types.TenantModuleActivation{
		TenantID:    "t1",
		ModuleID:    "m1",
		Active:      true,
		Quota:       types.QuotaLimits{"hospitals": 2},
		Usage:       types.UsageStats{},
		ActivatedAt: time.Now().UTC(),
	}
	require.NoError(t, activations.Upsert(ctx, row))
	require.NotEmpty(t, row.ID)

	got, err := activations.Get(ctx, "t1", "m1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, int64(2), got.Quota["hospitals"])

	// Flip inactive with a backup pointer; identity is preserved.
	row.Active = false
	row.LastBackup = &types.BackupRef{TakenAt: time.Now().UTC(), Location: "backups/t1/m1/123"}
	require.NoError(t, activations.Upsert(ctx, row))

	got, err = activations.Get(ctx, "t1", "m1")
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID, "upsert must not create a second row")
	assert.False(t, got.Active)
	require.NotNil(t, got.LastBackup)
	assert.Equal(t, "backups/t1/m1/123", got.LastBackup.Location)
}

func TestActivationStoreUsageAndListing(t *testing.T) {
	ctx := context.Background()
	activations := NewActivationStore(newTestConn())

	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, activations.Upsert(ctx, &types.TenantModuleActivation{
			TenantID:    "t1",
			ModuleID:    id,
			Active:      true,
			ActivatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, activations.Upsert(ctx, &types.TenantModuleActivation{
		TenantID: "t1",
		ModuleID: "m3",
		Active:   false,
	}))

	require.NoError(t, activations.SetUsageStat(ctx, "t1", "m1", "currentHospitals", 3))
	got, err := activations.Get(ctx, "t1", "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Usage["currentHospitals"])

	active, err := activations.ListActiveForTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	err = activations.SetUsageStat(ctx, "t1", "ghost", "x", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
