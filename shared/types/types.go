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

package types

import (
	"errors"
	"time"
)

// Plan tiers available to tenants.
const (
	PlanFree       = "free"
	PlanStandard   = "standard"
	PlanEnterprise = "enterprise"
)

// Tenant is a customer organization with its own isolated data store.
// Tenants are never deleted, only deactivated.
type Tenant struct {
	ID        string           `bson:"_id" json:"id"`
	Name      string           `bson:"name" json:"name"`
	Subdomain string           `bson:"subdomain" json:"subdomain"`
	Active    bool             `bson:"active" json:"active"`
	Plan      string           `bson:"plan" json:"plan"`
	Overrides map[string]int64 `bson:"overrides,omitempty" json:"overrides,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}

// NewTenant builds a Tenant, enforcing required fields.
func NewTenant(id, name, subdomain, plan string) (*Tenant, error) {
	if id == "" || name == "" || subdomain == "" {
		return nil, errors.New("tenant requires id, name, and subdomain")
	}
	if plan == "" {
		plan = PlanFree
	}
	return &Tenant{
		ID:        id,
		Name:      name,
		Subdomain: subdomain,
		Active:    true,
		Plan:      plan,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Module is a catalog entry for an optional feature unit. Catalog entries
// are seed data and immutable at runtime.
type Module struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"name" json:"name"`
	Dependencies []string `bson:"dependencies,omitempty" json:"dependencies,omitempty"`
	Collections  []string `bson:"collections" json:"collections"`
}

// NewModule builds a Module, enforcing required fields.
func NewModule(id, name string, dependencies, collections []string) (*Module, error) {
	if id == "" || name == "" {
		return nil, errors.New("module requires id and name")
	}
	return &Module{
		ID:           id,
		Name:         name,
		Dependencies: dependencies,
		Collections:  collections,
	}, nil
}

// QuotaLimits maps a metric name to its numeric ceiling. A missing metric
// is treated as unlimited.
type QuotaLimits map[string]int64

// UsageStats maps a metric name to its current observed count.
type UsageStats map[string]int64

// BackupRef points at the most recent backup snapshot for an activation.
type BackupRef struct {
	TakenAt  time.Time `bson:"taken_at" json:"taken_at"`
	Location string    `bson:"location" json:"location"`
}

// TenantModuleActivation is the per-(tenant, module) record tracking
// active state, quota, usage, and the latest backup pointer. Rows are
// never hard-deleted; deactivation flips Active to false.
type TenantModuleActivation struct {
	ID          string      `bson:"_id" json:"id"`
	TenantID    string      `bson:"tenant_id" json:"tenant_id"`
	ModuleID    string      `bson:"module_id" json:"module_id"`
	Active      bool        `bson:"active" json:"active"`
	Quota       QuotaLimits `bson:"quota,omitempty" json:"quota,omitempty"`
	Usage       UsageStats  `bson:"usage,omitempty" json:"usage,omitempty"`
	LastBackup  *BackupRef  `bson:"last_backup,omitempty" json:"last_backup,omitempty"`
	ActivatedAt time.Time   `bson:"activated_at" json:"activated_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}

// AdminCredentials is the administrator payload supplied to tenant store
// initialization. The password is hashed before persistence.
type AdminCredentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate checks that the credentials carry the minimum required fields.
func (c AdminCredentials) Validate() error {
	if c.Email == "" {
		return errors.New("admin credentials require an email")
	}
	if c.Password == "" {
		return errors.New("admin credentials require a password")
	}
	return nil
}
