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

// Package migration moves tenants off the legacy shared store into
// isolated per-tenant stores: provision and seed a fresh store, copy
// user accounts with their password hashes intact, and copy audit logs
// remapping user references onto the new identifiers. The whole tool is
// batch and operator-driven; nothing here is transactional across the
// two stores, a failed tenant is simply re-run.
package migration

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hivegrid/platform/catalog"
	"hivegrid/platform/provision"
	"hivegrid/platform/schema"
	"hivegrid/platform/shared/logger"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// ErrMigrationAborted is returned when the operator declines to
// overwrite an isolated store that already holds data.
var ErrMigrationAborted = errors.New("migration: aborted by operator")

// ConfirmFunc decides whether an isolated store with existing data may
// be destructively reinitialized. Injected so the core stays testable
// without a terminal.
type ConfirmFunc func(tenant *types.Tenant) bool

// Config wires the migration tool's collaborators. Shared is an open
// handle to the legacy shared store.
type Config struct {
	Registry    *store.Registry
	Tenants     *catalog.TenantStore
	Initializer *provision.Initializer
	Shared      store.Conn
	Confirm     ConfirmFunc
	Logger      *logger.Logger
}

// Tool runs shared-to-isolated store migrations.
type Tool struct {
	registry *store.Registry
	tenants  *catalog.TenantStore
	init     *provision.Initializer
	shared   store.Conn
	confirm  ConfirmFunc
	log      *logger.Logger
}

func NewTool(cfg Config) *Tool {
	log := cfg.Logger
	if log == nil {
		log = logger.New("migration")
	}
	confirm := cfg.Confirm
	if confirm == nil {
		confirm = func(*types.Tenant) bool { return false }
	}
	return &Tool{
		registry: cfg.Registry,
		tenants:  cfg.Tenants,
		init:     cfg.Initializer,
		shared:   cfg.Shared,
		confirm:  confirm,
		log:      log,
	}
}

// TenantResult records the outcome of migrating one tenant.
type TenantResult struct {
	TenantID  string
	Subdomain string
	Users     int
	AuditLogs int
	Err       error
}

// Report accumulates per-tenant migration outcomes.
type Report struct {
	Results []TenantResult
}

// Failed returns the subdomains of tenants whose migration errored.
func (r *Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Subdomain)
		}
	}
	return failed
}

// MigrateAll migrates every active tenant. One tenant's failure is
// logged and does not stop the rest.
func (t *Tool) MigrateAll(ctx context.Context) (*Report, error) {
	tenants, err := t.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	report := &Report{}
	for i := range tenants {
		tenant := &tenants[i]
		result, err := t.MigrateOne(ctx, tenant)
		if err != nil {
			t.log.ErrorWithErr(tenant.ID, "", "tenant migration failed", err, map[string]interface{}{
				"subdomain": tenant.Subdomain,
			})
			report.Results = append(report.Results, TenantResult{
				TenantID:  tenant.ID,
				Subdomain: tenant.Subdomain,
				Err:       err,
			})
			continue
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

// MigrateOne provisions and seeds the tenant's isolated store, then
// copies users and audit logs out of the shared store. If the isolated
// store already holds user data, the operator must confirm before it is
// wiped and rebuilt.
func (t *Tool) MigrateOne(ctx context.Context, tenant *types.Tenant) (*TenantResult, error) {
	conn, err := t.registry.ProvisionNew(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("provision store: %w", err)
	}

	populated, err := hasUserData(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("inspect store: %w", err)
	}
	if populated {
		if !t.confirm(tenant) {
			return nil, fmt.Errorf("%w: %s", ErrMigrationAborted, tenant.Subdomain)
		}
		if err := wipeBaseline(ctx, conn); err != nil {
			return nil, fmt.Errorf("wipe store: %w", err)
		}
	}

	if err := t.init.SeedBaseline(ctx, conn, tenant); err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}

	set := schema.Bind(conn)
	idMap, users, err := t.copyUsers(ctx, set, tenant)
	if err != nil {
		return nil, fmt.Errorf("copy users: %w", err)
	}
	logs, err := t.copyAuditLogs(ctx, set, tenant, idMap)
	if err != nil {
		return nil, fmt.Errorf("copy audit logs: %w", err)
	}

	t.log.Info(tenant.ID, "", "tenant migrated", map[string]interface{}{
		"subdomain":  tenant.Subdomain,
		"users":      users,
		"audit_logs": logs,
	})
	return &TenantResult{
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		Users:     users,
		AuditLogs: logs,
	}, nil
}

// copyUsers moves the tenant's user records into the isolated store,
// preserving password hashes, and returns the old-to-new identifier
// map. Role assignment follows the original user type.
func (t *Tool) copyUsers(ctx context.Context, set *schema.Set, tenant *types.Tenant) (map[string]string, int, error) {
	adminRole, err := set.Roles.GetByName(ctx, provision.RoleTenantAdmin)
	if err != nil {
		return nil, 0, fmt.Errorf("load admin role: %w", err)
	}
	userRole, err := set.Roles.GetByName(ctx, provision.RoleTenantUser)
	if err != nil {
		return nil, 0, fmt.Errorf("load user role: %w", err)
	}

	var docs []bson.M
	if err := t.shared.Collection(schema.CollectionUsers).Find(ctx, store.M{"tenant_id": tenant.ID}, &docs); err != nil {
		return nil, 0, fmt.Errorf("read shared users: %w", err)
	}

	idMap := make(map[string]string, len(docs))
	for _, doc := range docs {
		user := &schema.User{
			ID:           store.NewDocumentID(),
			Email:        asString(doc["email"]),
			PasswordHash: asString(doc["password_hash"]),
			FirstName:    asString(doc["first_name"]),
			LastName:     asString(doc["last_name"]),
			UserType:     asString(doc["user_type"]),
		}
		if err := set.Users.CreateWithHash(ctx, user); err != nil {
			return nil, 0, fmt.Errorf("copy user %s: %w", user.Email, err)
		}
		if oldID := asID(doc["_id"]); oldID != "" {
			idMap[oldID] = user.ID
		}

		roleID := userRole.ID
		if user.UserType == schema.UserTypeAdmin {
			roleID = adminRole.ID
		}
		if err := set.UserRoles.Create(ctx, &schema.UserRole{UserID: user.ID, RoleID: roleID}); err != nil {
			return nil, 0, fmt.Errorf("assign role to %s: %w", user.Email, err)
		}
	}
	return idMap, len(docs), nil
}

// copyAuditLogs moves the tenant's audit entries, remapping user
// references through idMap. An unmappable reference is kept as the
// original foreign key rather than dropping the record.
func (t *Tool) copyAuditLogs(ctx context.Context, set *schema.Set, tenant *types.Tenant, idMap map[string]string) (int, error) {
	var docs []bson.M
	if err := t.shared.Collection(schema.CollectionAuditLogs).Find(ctx, store.M{"tenant_id": tenant.ID}, &docs); err != nil {
		return 0, fmt.Errorf("read shared audit logs: %w", err)
	}

	for _, doc := range docs {
		userID := asID(doc["user_id"])
		if mapped, ok := idMap[userID]; ok {
			userID = mapped
		} else if userID != "" {
			t.log.Warn(tenant.ID, "", "audit log user reference not remappable, keeping original", map[string]interface{}{
				"user_id": userID,
			})
		}

		entry := &schema.AuditLog{
			ID:      store.NewDocumentID(),
			UserID:  userID,
			Action:  asString(doc["action"]),
			Entity:  asString(doc["entity"]),
			Details: asDetails(doc["details"]),
		}
		if err := set.AuditLogs.Create(ctx, entry); err != nil {
			return 0, fmt.Errorf("copy audit log: %w", err)
		}
	}
	return len(docs), nil
}

func hasUserData(ctx context.Context, conn store.Conn) (bool, error) {
	count, err := conn.Collection(schema.CollectionUsers).Count(ctx, store.M{})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func wipeBaseline(ctx context.Context, conn store.Conn) error {
	for _, name := range schema.BaselineCollections() {
		if err := conn.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asID renders a document identifier as a string. Stores written by the
// legacy application key users by ObjectID; those are carried around in
// their hex form so remapping works regardless of the id type.
func asID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return ""
	}
}

func asDetails(v interface{}) map[string]interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return val
	case bson.M:
		return map[string]interface{}(val)
	default:
		return nil
	}
}
