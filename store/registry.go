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

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hivegrid/platform/shared/logger"
	"hivegrid/platform/shared/types"
)

// TenantLookup resolves tenant records for the registry. Implemented by
// the catalog tenant store.
type TenantLookup interface {
	GetByID(ctx context.Context, id string) (*types.Tenant, error)
}

// Opener opens a connection to the store at the given address.
type Opener func(ctx context.Context, address string) (Conn, error)

// BindFunc binds entity definitions to a freshly opened handle. The
// registry invokes it once per open; implementations must be idempotent.
type BindFunc func(ctx context.Context, conn Conn) error

// RegistryConfig carries the constructor-injected collaborators of a
// Registry.
type RegistryConfig struct {
	// BaseAddress is the catalog store address; tenant addresses are
	// derived from it by substituting the trailing path segment.
	BaseAddress string

	// Tenants resolves tenant records before a handle is opened.
	Tenants TenantLookup

	// Open opens the underlying connection. Defaults to OpenMongo.
	Open Opener

	// Bind is invoked on every newly opened handle. Optional.
	Bind BindFunc

	Logger *logger.Logger
}

// Registry is the single source of truth for live tenant store handles.
// It serializes first-access opens per tenant so that concurrent callers
// converge on exactly one cached handle.
type Registry struct {
	baseAddr string
	tenants  TenantLookup
	open     Opener
	bind     BindFunc
	log      *logger.Logger

	mu      sync.Mutex
	handles map[string]Conn
	opening map[string]*openCall
}

type openCall struct {
	done chan struct{}
	conn Conn
	err  error
}

// NewRegistry creates a Registry from the given configuration.
func NewRegistry(cfg RegistryConfig) *Registry {
	open := cfg.Open
	if open == nil {
		open = OpenMongo
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("store-registry")
	}
	return &Registry{
		baseAddr: cfg.BaseAddress,
		tenants:  cfg.Tenants,
		open:     open,
		bind:     cfg.Bind,
		log:      log,
		handles:  make(map[string]Conn),
		opening:  make(map[string]*openCall),
	}
}

// GetOrOpen returns the cached handle for tenantID, opening one on first
// access. The tenant must exist and be active; otherwise nothing is
// opened or cached. Concurrent callers for the same uninitialized tenant
// share a single open.
func (r *Registry) GetOrOpen(ctx context.Context, tenantID string) (Conn, error) {
	r.mu.Lock()
	if conn, ok := r.handles[tenantID]; ok {
		r.mu.Unlock()
		return conn, nil
	}
	if call, ok := r.opening[tenantID]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return call.conn, call.err
	}
	call := &openCall{done: make(chan struct{})}
	r.opening[tenantID] = call
	r.mu.Unlock()

	// The open itself runs outside the cache lock; only the winning
	// caller reaches this point.
	conn, err := r.openForTenant(ctx, tenantID)

	r.mu.Lock()
	delete(r.opening, tenantID)
	if err == nil {
		r.handles[tenantID] = conn
		promOpenHandles.Set(float64(len(r.handles)))
	}
	r.mu.Unlock()

	call.conn, call.err = conn, err
	close(call.done)
	return conn, err
}

func (r *Registry) openForTenant(ctx context.Context, tenantID string) (Conn, error) {
	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		// A miss already carries ErrTenantNotFound; anything else is a
		// catalog failure and must not masquerade as a missing tenant.
		if errors.Is(err, ErrTenantNotFound) {
			promStoreOpens.WithLabelValues("tenant_not_found").Inc()
		} else {
			promStoreOpens.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("resolve tenant %s: %w", tenantID, err)
	}
	if !tenant.Active {
		promStoreOpens.WithLabelValues("tenant_inactive").Inc()
		return nil, fmt.Errorf("%w: %s", ErrTenantInactive, tenantID)
	}

	address, err := DeriveAddress(r.baseAddr, tenant.Subdomain)
	if err != nil {
		promStoreOpens.WithLabelValues("bad_address").Inc()
		return nil, err
	}

	conn, err := r.openAndBind(ctx, address)
	if err != nil {
		promStoreOpens.WithLabelValues("error").Inc()
		r.log.ErrorWithErr(tenantID, "", "Failed to open tenant store", err, map[string]interface{}{
			"subdomain": tenant.Subdomain,
		})
		return nil, err
	}

	promStoreOpens.WithLabelValues("ok").Inc()
	r.log.Info(tenantID, "", "Opened tenant store", map[string]interface{}{
		"database": conn.Name(),
	})
	return conn, nil
}

func (r *Registry) openAndBind(ctx context.Context, address string) (Conn, error) {
	conn, err := r.open(ctx, address)
	if err != nil {
		if IsConnError(err) {
			return nil, err
		}
		return nil, NewConnError("open", address, err)
	}
	if r.bind != nil {
		if err := r.bind(ctx, conn); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("bind schemas: %w", err)
		}
	}
	return conn, nil
}

// ProvisionNew always opens a new underlying connection for first-time
// provisioning, bypassing the cache check, and caches the result. A
// previously cached handle for the tenant is closed and replaced.
func (r *Registry) ProvisionNew(ctx context.Context, tenant *types.Tenant) (Conn, error) {
	address, err := DeriveAddress(r.baseAddr, tenant.Subdomain)
	if err != nil {
		return nil, err
	}
	conn, err := r.openAndBind(ctx, address)
	if err != nil {
		promStoreOpens.WithLabelValues("error").Inc()
		return nil, err
	}
	promStoreOpens.WithLabelValues("ok").Inc()

	r.mu.Lock()
	previous := r.handles[tenant.ID]
	r.handles[tenant.ID] = conn
	promOpenHandles.Set(float64(len(r.handles)))
	r.mu.Unlock()

	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			r.log.Warn(tenant.ID, "", "Failed to close replaced handle", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	r.log.Info(tenant.ID, "", "Provisioned tenant store", map[string]interface{}{
		"database": conn.Name(),
	})
	return conn, nil
}

// Evict closes and removes the cached handle for tenantID. Evicting an
// absent tenant is a no-op.
func (r *Registry) Evict(ctx context.Context, tenantID string) {
	r.mu.Lock()
	conn, ok := r.handles[tenantID]
	if ok {
		delete(r.handles, tenantID)
		promOpenHandles.Set(float64(len(r.handles)))
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	promStoreEvictions.Inc()
	if err := conn.Close(ctx); err != nil {
		r.log.Warn(tenantID, "", "Failed to close evicted handle", map[string]interface{}{
			"error": err.Error(),
		})
	}
	r.log.Info(tenantID, "", "Evicted tenant store handle", nil)
}

// CloseAll closes every cached handle. Used at process shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]Conn)
	promOpenHandles.Set(0)
	r.mu.Unlock()

	for tenantID, conn := range handles {
		if err := conn.Close(ctx); err != nil {
			r.log.Warn(tenantID, "", "Failed to close handle", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	r.log.Info("", "", "Closed all tenant store handles", map[string]interface{}{
		"count": len(handles),
	})
}

// Count returns the number of cached handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Cached reports whether a handle is cached for tenantID.
func (r *Registry) Cached(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[tenantID]
	return ok
}
