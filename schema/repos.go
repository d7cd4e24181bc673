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
	"errors"
	"fmt"
	"time"

	"hivegrid/platform/store"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("schema: not found")

// UserRepo persists users for one tenant store.
type UserRepo struct {
	coll store.Collection
}

// Create hashes the plaintext password and inserts the user. The
// caller's PasswordHash field is ignored.
func (r *UserRepo) Create(ctx context.Context, user *User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	return r.CreateWithHash(ctx, user)
}

// CreateWithHash inserts a user whose PasswordHash is already set.
// Used when copying accounts between stores, where the original hash
// must survive untouched.
func (r *UserRepo) CreateWithHash(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = store.NewDocumentID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.coll.FindOne(ctx, store.M{"_id": id}, &user)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.coll.FindOne(ctx, store.M{"email": email}, &user)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.coll.Find(ctx, store.M{}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.Count(ctx, store.M{})
}

// RoleRepo persists roles for one tenant store.
type RoleRepo struct {
	coll store.Collection
}

func (r *RoleRepo) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = store.NewDocumentID()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, role); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.coll.FindOne(ctx, store.M{"name": name}, &role)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) List(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := r.coll.Find(ctx, store.M{}, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// PermissionRepo persists permissions for one tenant store.
type PermissionRepo struct {
	coll store.Collection
}

func (r *PermissionRepo) Create(ctx context.Context, perm *Permission) error {
	if perm.ID == "" {
		perm.ID = store.NewDocumentID()
	}
	if _, err := r.coll.InsertOne(ctx, perm); err != nil {
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

func (r *PermissionRepo) List(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := r.coll.Find(ctx, store.M{}, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *PermissionRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.Count(ctx, store.M{})
}

// UserRoleRepo persists user-to-role links for one tenant store.
type UserRoleRepo struct {
	coll store.Collection
}

func (r *UserRoleRepo) Create(ctx context.Context, link *UserRole) error {
	if link.ID == "" {
		link.ID = store.NewDocumentID()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, link); err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}
	return nil
}

func (r *UserRoleRepo) ListForUser(ctx context.Context, userID string) ([]UserRole, error) {
	var links []UserRole
	if err := r.coll.Find(ctx, store.M{"user_id": userID}, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *UserRoleRepo) List(ctx context.Context) ([]UserRole, error) {
	var links []UserRole
	if err := r.coll.Find(ctx, store.M{}, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// AuditLogRepo persists audit entries for one tenant store.
type AuditLogRepo struct {
	coll store.Collection
}

func (r *AuditLogRepo) Create(ctx context.Context, entry *AuditLog) error {
	if entry.ID == "" {
		entry.ID = store.NewDocumentID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepo) List(ctx context.Context) ([]AuditLog, error) {
	var entries []AuditLog
	if err := r.coll.Find(ctx, store.M{}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *AuditLogRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.Count(ctx, store.M{})
}

// SettingsRepo persists the tenant settings record.
type SettingsRepo struct {
	coll store.Collection
}

func (r *SettingsRepo) Put(ctx context.Context, s *Settings) error {
	if s.ID == "" {
		s.ID = store.NewDocumentID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (r *SettingsRepo) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.coll.FindOne(ctx, store.M{}, &s)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
