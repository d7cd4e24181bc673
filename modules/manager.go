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

// Package modules drives the per-tenant module lifecycle:
// Uninitialized -> Active <-> Inactive, with dependency ordering,
// collection provisioning, optional backup/restore around the
// transitions, and reactive quota observation.
package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hivegrid/platform/backup"
	"hivegrid/platform/catalog"
	"hivegrid/platform/shared/logger"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// Archiver snapshots and restores a module's owned collections.
// *backup.Engine implements it.
type Archiver interface {
	Backup(ctx context.Context, tenantID, destination string, collections []string) (*backup.Report, error)
	Restore(ctx context.Context, tenantID, source string, collections []string) (*backup.Report, error)
}

// Notifier receives quota overage events. Calls are fire-and-forget.
type Notifier interface {
	NotifyOverage(tenantID, moduleID, metric string, value, limit int64)
}

// LogNotifier reports overages to the structured log.
type LogNotifier struct {
	Log *logger.Logger
}

func (n *LogNotifier) NotifyOverage(tenantID, moduleID, metric string, value, limit int64) {
	n.Log.Warn(tenantID, "", "quota exceeded", map[string]interface{}{
		"module": moduleID,
		"metric": metric,
		"value":  value,
		"limit":  limit,
	})
}

// ManagerConfig wires the lifecycle manager's collaborators. Archiver,
// Cache and Notifier are optional.
type ManagerConfig struct {
	Registry    *store.Registry
	Modules     *catalog.ModuleStore
	Activations *catalog.ActivationStore
	Archiver    Archiver
	Cache       *AccessCache
	Notifier    Notifier
	Logger      *logger.Logger
}

// Manager activates and deactivates modules per tenant.
type Manager struct {
	registry    *store.Registry
	modules     *catalog.ModuleStore
	activations *catalog.ActivationStore
	archiver    Archiver
	cache       *AccessCache
	notifier    Notifier
	log         *logger.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logger.New("modules")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = &LogNotifier{Log: log}
	}
	return &Manager{
		registry:    cfg.Registry,
		modules:     cfg.Modules,
		activations: cfg.Activations,
		archiver:    cfg.Archiver,
		cache:       cfg.Cache,
		notifier:    notifier,
		log:         log,
	}
}

// Activate turns a module on for a tenant. Every declared dependency
// must already be active; there is no partial activation. Owned
// collections are created idempotently, and a prior backup pointer is
// restored best-effort before the row flips active.
func (m *Manager) Activate(ctx context.Context, tenantID, moduleID string, quota types.QuotaLimits) error {
	mod, err := m.modules.GetByID(ctx, moduleID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	for _, depName := range mod.Dependencies {
		dep, err := m.modules.GetByName(ctx, depName)
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrDependencyNotActive, depName)
		}
		if err != nil {
			return fmt.Errorf("load dependency %s: %w", depName, err)
		}
		row, err := m.activations.Get(ctx, tenantID, dep.ID)
		if errors.Is(err, catalog.ErrNotFound) || (err == nil && !row.Active) {
			return fmt.Errorf("%w: %s", ErrDependencyNotActive, depName)
		}
		if err != nil {
			return fmt.Errorf("check dependency %s: %w", depName, err)
		}
	}

	existing, err := m.activations.Get(ctx, tenantID, moduleID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("load activation: %w", err)
	}
	if existing != nil && existing.Active {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, mod.Name)
	}

	conn, err := m.registry.GetOrOpen(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("open tenant store: %w", err)
	}
	for _, name := range mod.Collections {
		if err := conn.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}

	// A failed restore never blocks activation; the module comes up
	// with whatever collections survive.
	if existing != nil && existing.LastBackup != nil && m.archiver != nil {
		report, err := m.archiver.Restore(ctx, tenantID, existing.LastBackup.Location, mod.Collections)
		if err != nil {
			m.log.ErrorWithErr(tenantID, "", "restore before activation failed", err, map[string]interface{}{
				"module": mod.Name,
				"source": existing.LastBackup.Location,
			})
		} else if report.Partial() {
			m.log.Warn(tenantID, "", "restore before activation was partial", map[string]interface{}{
				"module": mod.Name,
				"failed": report.Failed(),
			})
		}
	}

	row := &types.TenantModuleActivation{
		TenantID:    tenantID,
		ModuleID:    moduleID,
		Active:      true,
		Quota:       quota,
		ActivatedAt: time.Now().UTC(),
	}
	if existing != nil {
		row.ID = existing.ID
		row.Usage = existing.Usage
		row.LastBackup = existing.LastBackup
	}
	if err := m.activations.Upsert(ctx, row); err != nil {
		return fmt.Errorf("record activation: %w", err)
	}

	m.invalidateAccess(ctx, tenantID, mod.Name)
	promActivations.WithLabelValues("activate").Inc()
	m.log.Info(tenantID, "", "module activated", map[string]interface{}{
		"module":      mod.Name,
		"collections": len(mod.Collections),
	})
	return nil
}

// Deactivate turns a module off. Modules that other active modules
// depend on cannot be deactivated. When shouldBackup is set the owned
// collections are snapshotted first; a failed backup is logged and the
// deactivation proceeds without a backup pointer.
func (m *Manager) Deactivate(ctx context.Context, tenantID, moduleID string, shouldBackup bool) error {
	row, err := m.activations.Get(ctx, tenantID, moduleID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotActive, moduleID)
	}
	if err != nil {
		return fmt.Errorf("load activation: %w", err)
	}
	if !row.Active {
		return fmt.Errorf("%w: %s", ErrNotActive, moduleID)
	}

	mod, err := m.modules.GetByID(ctx, moduleID)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	all, err := m.modules.List(ctx)
	if err != nil {
		return fmt.Errorf("list modules: %w", err)
	}
	for _, other := range all {
		if other.ID == mod.ID || !dependsOn(&other, mod.Name) {
			continue
		}
		otherRow, err := m.activations.Get(ctx, tenantID, other.ID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("check dependent %s: %w", other.Name, err)
		}
		if otherRow.Active {
			return fmt.Errorf("%w: %s depends on %s", ErrDependentModulesActive, other.Name, mod.Name)
		}
	}

	if shouldBackup && m.archiver != nil {
		takenAt := time.Now().UTC()
		dest := backup.DestinationFor(tenantID, moduleID, takenAt)
		report, err := m.archiver.Backup(ctx, tenantID, dest, mod.Collections)
		if err != nil {
			m.log.ErrorWithErr(tenantID, "", "backup before deactivation failed", err, map[string]interface{}{
				"module": mod.Name,
			})
		} else {
			if report.Partial() {
				m.log.Warn(tenantID, "", "backup before deactivation was partial", map[string]interface{}{
					"module": mod.Name,
					"failed": report.Failed(),
				})
			}
			row.LastBackup = &types.BackupRef{TakenAt: takenAt, Location: dest}
		}
	}

	row.Active = false
	if err := m.activations.Upsert(ctx, row); err != nil {
		return fmt.Errorf("record deactivation: %w", err)
	}

	m.invalidateAccess(ctx, tenantID, mod.Name)
	promActivations.WithLabelValues("deactivate").Inc()
	m.log.Info(tenantID, "", "module deactivated", map[string]interface{}{
		"module":    mod.Name,
		"backed_up": row.LastBackup != nil,
	})
	return nil
}

// UpdateUsageStat records a usage statistic for an active module. The
// write is never blocked or clamped; crossing the matching quota
// ceiling emits an overage notification on a separate goroutine.
func (m *Manager) UpdateUsageStat(ctx context.Context, tenantID, moduleID, metric string, value int64) error {
	row, err := m.activations.Get(ctx, tenantID, moduleID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotActive, moduleID)
	}
	if err != nil {
		return fmt.Errorf("load activation: %w", err)
	}
	if !row.Active {
		return fmt.Errorf("%w: %s", ErrNotActive, moduleID)
	}

	if err := m.activations.SetUsageStat(ctx, tenantID, moduleID, metric, value); err != nil {
		return fmt.Errorf("set usage stat: %w", err)
	}

	if limit, ok := matchLimit(row.Quota, metric); ok && value > limit {
		go m.notifier.NotifyOverage(tenantID, moduleID, metric, value, limit)
	}
	return nil
}

// HasModuleAccess reports whether the named module is active for the
// tenant. An unknown module is simply not accessible.
func (m *Manager) HasModuleAccess(ctx context.Context, tenantID, moduleName string) (bool, error) {
	if m.cache != nil {
		if allowed, ok := m.cache.Get(ctx, tenantID, moduleName); ok {
			return allowed, nil
		}
	}

	allowed, err := m.lookupAccess(ctx, tenantID, moduleName)
	if err != nil {
		return false, err
	}
	if m.cache != nil {
		m.cache.Set(ctx, tenantID, moduleName, allowed)
	}
	return allowed, nil
}

func (m *Manager) lookupAccess(ctx context.Context, tenantID, moduleName string) (bool, error) {
	mod, err := m.modules.GetByName(ctx, moduleName)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	row, err := m.activations.Get(ctx, tenantID, mod.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Active, nil
}

// HasExceededQuota reports whether the current usage statistic has
// reached the matching quota ceiling. An inactive module always
// exceeds; an absent quota means unlimited and never exceeds.
func (m *Manager) HasExceededQuota(ctx context.Context, tenantID, moduleName, metric string) (bool, error) {
	mod, err := m.modules.GetByName(ctx, moduleName)
	if errors.Is(err, catalog.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	row, err := m.activations.Get(ctx, tenantID, mod.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !row.Active {
		return true, nil
	}

	limit, ok := matchLimit(row.Quota, metric)
	if !ok {
		return false, nil
	}
	current, ok := matchStat(row.Usage, metric)
	if !ok {
		return false, nil
	}
	return current >= limit, nil
}

// ModuleByName resolves a catalog entry by its unique name.
func (m *Manager) ModuleByName(ctx context.Context, name string) (*types.Module, error) {
	mod, err := m.modules.GetByName(ctx, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return mod, err
}

// ActiveModules lists the tenant's active activation rows.
func (m *Manager) ActiveModules(ctx context.Context, tenantID string) ([]types.TenantModuleActivation, error) {
	return m.activations.ListActiveForTenant(ctx, tenantID)
}

func (m *Manager) invalidateAccess(ctx context.Context, tenantID, moduleName string) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, tenantID, moduleName)
	}
}

func dependsOn(mod *types.Module, name string) bool {
	for _, dep := range mod.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}
