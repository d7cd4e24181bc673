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

// Package provision turns a newly created tenant plus administrator
// credentials into a fully seeded isolated store: baseline collections,
// the permission matrix, the two baseline roles, the administrator
// account, and a settings record. Seeding is idempotent so the
// initializer can be re-run against a partially initialized store to
// repair it.
package provision

import (
	"context"
	"errors"
	"fmt"

	"hivegrid/platform/schema"
	"hivegrid/platform/shared/logger"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// Baseline role names.
const (
	RoleTenantAdmin = "Tenant Admin"
	RoleTenantUser  = "Tenant User"
)

// permissionModules is the fixed module list the permission matrix is
// built from.
var permissionModules = []string{"auth", "users", "roles", "settings", "reports"}

// permissionActions is the fixed action list of the permission matrix.
var permissionActions = []string{"create", "read", "update", "delete", "manage"}

// skippedPermissions names matrix cells that make no sense and are not
// seeded.
var skippedPermissions = map[string]bool{
	"auth:create": true,
	"auth:delete": true,
}

// Initializer seeds freshly provisioned tenant stores.
type Initializer struct {
	registry *store.Registry
	log      *logger.Logger
}

func NewInitializer(registry *store.Registry, log *logger.Logger) *Initializer {
	if log == nil {
		log = logger.New("provision")
	}
	return &Initializer{registry: registry, log: log}
}

// Initialize provisions the tenant's isolated store and seeds it.
// Partial writes are not rolled back on failure; re-running repairs a
// half-initialized store because every seeding step skips what already
// exists.
func (i *Initializer) Initialize(ctx context.Context, tenant *types.Tenant, creds types.AdminCredentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}

	conn, err := i.registry.ProvisionNew(ctx, tenant)
	if err != nil {
		return fmt.Errorf("provision store: %w", err)
	}

	if err := i.Seed(ctx, conn, tenant, creds); err != nil {
		return err
	}

	i.log.Info(tenant.ID, "", "tenant store initialized", map[string]interface{}{
		"subdomain": tenant.Subdomain,
		"store":     conn.Name(),
	})
	return nil
}

// Seed writes the baseline data into an already open handle. Exposed
// separately so the repair path can re-seed without re-provisioning.
func (i *Initializer) Seed(ctx context.Context, conn store.Conn, tenant *types.Tenant, creds types.AdminCredentials) error {
	if err := i.SeedBaseline(ctx, conn, tenant); err != nil {
		return err
	}
	if err := i.seedAdmin(ctx, schema.Bind(conn), creds); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

// SeedBaseline writes permissions, roles and the settings record but no
// administrator account. Used when accounts arrive from elsewhere, such
// as a copy out of the legacy shared store.
func (i *Initializer) SeedBaseline(ctx context.Context, conn store.Conn, tenant *types.Tenant) error {
	if err := schema.EnsureBaseline(ctx, conn); err != nil {
		return fmt.Errorf("bind schemas: %w", err)
	}
	set := schema.Bind(conn)

	allPerms, err := i.seedPermissions(ctx, set)
	if err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	if err := i.seedRoles(ctx, set, allPerms); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	if err := i.seedSettings(ctx, set, tenant); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// seedPermissions writes the module × action matrix and returns every
// permission name the store now carries.
func (i *Initializer) seedPermissions(ctx context.Context, set *schema.Set) ([]string, error) {
	existing, err := set.Permissions.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.Name] = true
	}

	var names []string
	for _, module := range permissionModules {
		for _, action := range permissionActions {
			name := module + ":" + action
			if skippedPermissions[name] {
				continue
			}
			names = append(names, name)
			if seen[name] {
				continue
			}
			perm := &schema.Permission{Name: name, Module: module, Action: action}
			if err := set.Permissions.Create(ctx, perm); err != nil {
				return nil, err
			}
		}
	}
	return names, nil
}

func (i *Initializer) seedRoles(ctx context.Context, set *schema.Set, allPerms []string) error {
	var readOnly []string
	for _, name := range allPerms {
		if len(name) > 5 && name[len(name)-5:] == ":read" {
			readOnly = append(readOnly, name)
		}
	}
	// Tenant users may edit their own account.
	userPerms := append(readOnly, "users:update")

	for _, role := range []*schema.Role{
		{Name: RoleTenantAdmin, Permissions: allPerms},
		{Name: RoleTenantUser, Permissions: userPerms},
	} {
		_, err := set.Roles.GetByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, schema.ErrNotFound) {
			return err
		}
		if err := set.Roles.Create(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

func (i *Initializer) seedAdmin(ctx context.Context, set *schema.Set, creds types.AdminCredentials) error {
	if _, err := set.Users.GetByEmail(ctx, creds.Email); err == nil {
		return nil
	} else if !errors.Is(err, schema.ErrNotFound) {
		return err
	}

	admin := &schema.User{
		Email:     creds.Email,
		FirstName: creds.FirstName,
		LastName:  creds.LastName,
		UserType:  schema.UserTypeAdmin,
	}
	if err := set.Users.Create(ctx, admin, creds.Password); err != nil {
		return err
	}

	role, err := set.Roles.GetByName(ctx, RoleTenantAdmin)
	if err != nil {
		return err
	}
	return set.UserRoles.Create(ctx, &schema.UserRole{UserID: admin.ID, RoleID: role.ID})
}

func (i *Initializer) seedSettings(ctx context.Context, set *schema.Set, tenant *types.Tenant) error {
	if _, err := set.Settings.Get(ctx); err == nil {
		return nil
	} else if !errors.Is(err, schema.ErrNotFound) {
		return err
	}
	return set.Settings.Put(ctx, &schema.Settings{
		TenantName: tenant.Name,
		Subdomain:  tenant.Subdomain,
		Plan:       tenant.Plan,
	})
}
