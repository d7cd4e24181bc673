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

package schema

import (
	"context"
	"fmt"
	"time"

	"hivegrid/platform/store"
)

// Baseline collection names.
const (
	CollectionUsers       = "users"
	CollectionRoles       = "roles"
	CollectionPermissions = "permissions"
	CollectionUserRoles   = "user_roles"
	CollectionAuditLogs   = "audit_logs"
	CollectionSettings    = "settings"
)

// User types recognized by the platform.
const (
	UserTypeAdmin = "admin"
	UserTypeUser  = "user"
)

// User is an account inside one tenant store. PasswordHash is a bcrypt
// hash; plaintext passwords never reach the store.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	FirstName    string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName     string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	UserType     string    `bson:"user_type" json:"user_type"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Permissions []string  `bson:"permissions" json:"permissions"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Permission names one action on one module, e.g. "patients:read".
type Permission struct {
	ID     string `bson:"_id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Module string `bson:"module" json:"module"`
	Action string `bson:"action" json:"action"`
}

// UserRole links a user to a role.
type UserRole struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	RoleID    string    `bson:"role_id" json:"role_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AuditLog is one recorded action inside a tenant store.
type AuditLog struct {
	ID        string                 `bson:"_id" json:"id"`
	UserID    string                 `bson:"user_id" json:"user_id"`
	Action    string                 `bson:"action" json:"action"`
	Entity    string                 `bson:"entity,omitempty" json:"entity,omitempty"`
	Details   map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}

// Settings captures tenant metadata inside the tenant's own store for
// later introspection.
type Settings struct {
	ID         string    `bson:"_id" json:"id"`
	TenantName string    `bson:"tenant_name" json:"tenant_name"`
	Subdomain  string    `bson:"subdomain" json:"subdomain"`
	Plan       string    `bson:"plan" json:"plan"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Set holds the typed repositories bound to one store handle.
type Set struct {
	Users       *UserRepo
	Roles       *RoleRepo
	Permissions *PermissionRepo
	UserRoles   *UserRoleRepo
	AuditLogs   *AuditLogRepo
	Settings    *SettingsRepo
}

// Bind constructs the typed repositories for a handle. It is pure and
// idempotent; calling it twice on the same handle yields equivalent sets.
func Bind(conn store.Conn) *Set {
	return &Set{
		Users:       &UserRepo{coll: conn.Collection(CollectionUsers)},
		Roles:       &RoleRepo{coll: conn.Collection(CollectionRoles)},
		Permissions: &PermissionRepo{coll: conn.Collection(CollectionPermissions)},
		UserRoles:   &UserRoleRepo{coll: conn.Collection(CollectionUserRoles)},
		AuditLogs:   &AuditLogRepo{coll: conn.Collection(CollectionAuditLogs)},
		Settings:    &SettingsRepo{coll: conn.Collection(CollectionSettings)},
	}
}

// BaselineCollections returns the collection names every tenant store
// carries.
func BaselineCollections() []string {
	return []string{
		CollectionUsers,
		CollectionRoles,
		CollectionPermissions,
		CollectionUserRoles,
		CollectionAuditLogs,
		CollectionSettings,
	}
}

// baselineIndexes lists the uniqueness constraints of the baseline
// entities.
var baselineIndexes = []struct {
	collection string
	field      string
	unique     bool
}{
	{CollectionUsers, "email", true},
	{CollectionRoles, "name", true},
	{CollectionPermissions, "name", true},
	{CollectionUserRoles, "user_id", false},
	{CollectionAuditLogs, "user_id", false},
}

// EnsureBaseline creates the baseline collections and indexes on a
// handle. Safe to re-run; existing collections and data are untouched.
func EnsureBaseline(ctx context.Context, conn store.Conn) error {
	for _, name := range BaselineCollections() {
		if err := conn.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	for _, idx := range baselineIndexes {
		if err := conn.EnsureIndex(ctx, idx.collection, idx.field, idx.unique); err != nil {
			return fmt.Errorf("ensure index %s.%s: %w", idx.collection, idx.field, err)
		}
	}
	return nil
}
