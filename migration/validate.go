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

	"hivegrid/platform/schema"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// ValidationResult lists what is wrong with one tenant's isolated
// store. An empty Issues slice with a nil Err means the store is sound.
type ValidationResult struct {
	TenantID  string
	Subdomain string
	Issues    []string
	Err       error
}

// OK reports whether the store passed every check.
func (r *ValidationResult) OK() bool {
	return r.Err == nil && len(r.Issues) == 0
}

// ValidateAll runs a read-only integrity check over every active
// tenant's isolated store: baseline collections present, seed data
// non-empty, and at least one administrator account.
func (t *Tool) ValidateAll(ctx context.Context) ([]ValidationResult, error) {
	tenants, err := t.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	results := make([]ValidationResult, 0, len(tenants))
	for i := range tenants {
		tenant := &tenants[i]
		result := t.validateTenant(ctx, tenant)
		if !result.OK() {
			t.log.Warn(tenant.ID, "", "tenant store failed validation", map[string]interface{}{
				"subdomain": tenant.Subdomain,
				"issues":    result.Issues,
			})
		}
		results = append(results, result)
	}
	return results, nil
}

func (t *Tool) validateTenant(ctx context.Context, tenant *types.Tenant) ValidationResult {
	result := ValidationResult{TenantID: tenant.ID, Subdomain: tenant.Subdomain}

	conn, err := t.registry.GetOrOpen(ctx, tenant.ID)
	if err != nil {
		result.Err = fmt.Errorf("open store: %w", err)
		return result
	}

	names, err := conn.ListCollections(ctx)
	if err != nil {
		result.Err = fmt.Errorf("list collections: %w", err)
		return result
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, want := range schema.BaselineCollections() {
		if !present[want] {
			result.Issues = append(result.Issues, fmt.Sprintf("missing collection %s", want))
		}
	}

	// Seeded entities must not be empty in a healthy store. Audit logs
	// legitimately start empty and are not checked.
	for _, name := range []string{schema.CollectionUsers, schema.CollectionRoles, schema.CollectionPermissions} {
		if !present[name] {
			continue
		}
		count, err := conn.Collection(name).Count(ctx, store.M{})
		if err != nil {
			result.Err = fmt.Errorf("count %s: %w", name, err)
			return result
		}
		if count == 0 {
			result.Issues = append(result.Issues, fmt.Sprintf("collection %s is empty", name))
		}
	}

	if present[schema.CollectionUsers] {
		admins, err := conn.Collection(schema.CollectionUsers).Count(ctx, store.M{"user_type": schema.UserTypeAdmin})
		if err != nil {
			result.Err = fmt.Errorf("count administrators: %w", err)
			return result
		}
		if admins == 0 {
			result.Issues = append(result.Issues, "no administrator account")
		}
	}
	return result
}

// FixTenantDatabase repairs one tenant's isolated store: evict the
// cached handle and re-run the initializer, whose seeding skips
// whatever already exists.
func (t *Tool) FixTenantDatabase(ctx context.Context, subdomain string, creds types.AdminCredentials) error {
	tenant, err := t.tenants.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", subdomain, err)
	}

	t.registry.Evict(ctx, tenant.ID)
	if err := t.init.Initialize(ctx, tenant, creds); err != nil {
		return fmt.Errorf("reinitialize %s: %w", subdomain, err)
	}

	t.log.Info(tenant.ID, "", "tenant store repaired", map[string]interface{}{
		"subdomain": subdomain,
	})
	return nil
}
