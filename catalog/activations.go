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
	"errors"
	"fmt"
	"time"

	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// CollectionActivations is the catalog collection holding per-tenant
// module activation rows.
const CollectionActivations = "tenant_modules"

// ActivationStore reads and writes TenantModuleActivation rows. Rows have
// composite identity (tenant id, module id) and are never hard-deleted.
type ActivationStore struct {
	coll store.Collection
}

// NewActivationStore creates an ActivationStore over the catalog connection.
func NewActivationStore(conn store.Conn) *ActivationStore {
	return &ActivationStore{coll: conn.Collection(CollectionActivations)}
}

// Get returns the activation row for (tenantID, moduleID).
func (s *ActivationStore) Get(ctx context.Context, tenantID, moduleID string) (*types.TenantModuleActivation, error) {
	var row types.TenantModuleActivation
	err := s.coll.FindOne(ctx, store.M{"tenant_id": tenantID, "module_id": moduleID}, &row)
	if err == store.ErrNoDocuments {
		return nil, fmt.Errorf("%w: activation %s/%s", ErrNotFound, tenantID, moduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get activation %s/%s: %w", tenantID, moduleID, err)
	}
	return &row, nil
}

// Upsert writes the activation row, inserting on first activation and
// replacing fields on later cycles. Concurrent upserts for the same pair
// resolve last-writer-wins.
func (s *ActivationStore) Upsert(ctx context.Context, row *types.TenantModuleActivation) error {
	row.UpdatedAt = time.Now().UTC()

	existing, err := s.Get(ctx, row.TenantID, row.ModuleID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing == nil {
		if row.ID == "" {
			row.ID = store.NewDocumentID()
		}
		if _, err := s.coll.InsertOne(ctx, row); err != nil {
			return fmt.Errorf("insert activation %s/%s: %w", row.TenantID, row.ModuleID, err)
		}
		return nil
	}

	row.ID = existing.ID
	update := store.M{
		"active":       row.Active,
		"quota":        row.Quota,
		"usage":        row.Usage,
		"activated_at": row.ActivatedAt,
		"updated_at":   row.UpdatedAt,
	}
	if row.LastBackup != nil {
		update["last_backup"] = row.LastBackup
	}
	if _, err := s.coll.UpdateOne(ctx, store.M{"_id": existing.ID}, update); err != nil {
		return fmt.Errorf("update activation %s/%s: %w", row.TenantID, row.ModuleID, err)
	}
	return nil
}

// SetUsageStat updates one usage statistic on the activation row.
func (s *ActivationStore) SetUsageStat(ctx context.Context, tenantID, moduleID, metric string, value int64) error {
	row, err := s.Get(ctx, tenantID, moduleID)
	if err != nil {
		return err
	}
	if row.Usage == nil {
		row.Usage = types.UsageStats{}
	}
	row.Usage[metric] = value
	update := store.M{
		"usage":      row.Usage,
		"updated_at": time.Now().UTC(),
	}
	if _, err := s.coll.UpdateOne(ctx, store.M{"_id": row.ID}, update); err != nil {
		return fmt.Errorf("update usage %s/%s: %w", tenantID, moduleID, err)
	}
	return nil
}

// ListActiveForTenant returns every active activation row for a tenant.
func (s *ActivationStore) ListActiveForTenant(ctx context.Context, tenantID string) ([]types.TenantModuleActivation, error) {
	var rows []types.TenantModuleActivation
	if err := s.coll.Find(ctx, store.M{"tenant_id": tenantID, "active": true}, &rows); err != nil {
		return nil, fmt.Errorf("list activations for %s: %w", tenantID, err)
	}
	return rows, nil
}
