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

	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// CollectionTenants is the catalog collection holding tenant records.
const CollectionTenants = "tenants"

// ErrNotFound is returned when a catalog record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// TenantStore reads and writes tenant records in the catalog. Tenant
// creation itself belongs to the external tenant-creation workflow; the
// core reads tenants to test liveness before opening store handles.
type TenantStore struct {
	coll store.Collection
}

// NewTenantStore creates a TenantStore over the catalog connection.
func NewTenantStore(conn store.Conn) *TenantStore {
	return &TenantStore{coll: conn.Collection(CollectionTenants)}
}

// GetByID returns the tenant with the given identifier. A miss is
// reported as store.ErrTenantNotFound so callers can tell an absent
// tenant from a failed catalog read.
func (s *TenantStore) GetByID(ctx context.Context, id string) (*types.Tenant, error) {
	var tenant types.Tenant
	err := s.coll.FindOne(ctx, store.M{"_id": id}, &tenant)
	if err == store.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", store.ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &tenant, nil
}

// GetBySubdomain returns the tenant with the given subdomain.
func (s *TenantStore) GetBySubdomain(ctx context.Context, subdomain string) (*types.Tenant, error) {
	var tenant types.Tenant
	err := s.coll.FindOne(ctx, store.M{"subdomain": subdomain}, &tenant)
	if err == store.ErrNoDocuments {
		return nil, fmt.Errorf("%w: tenant subdomain %s", ErrNotFound, subdomain)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by subdomain %s: %w", subdomain, err)
	}
	return &tenant, nil
}

// ListActive returns every active tenant.
func (s *TenantStore) ListActive(ctx context.Context) ([]types.Tenant, error) {
	var tenants []types.Tenant
	if err := s.coll.Find(ctx, store.M{"active": true}, &tenants); err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return tenants, nil
}

// Create inserts a tenant record. Used by seeding and tests; production
// tenant creation is an external workflow.
func (s *TenantStore) Create(ctx context.Context, tenant *types.Tenant) error {
	if _, err := s.coll.InsertOne(ctx, tenant); err != nil {
		return fmt.Errorf("create tenant %s: %w", tenant.ID, err)
	}
	return nil
}
