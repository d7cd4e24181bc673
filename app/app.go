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

// Package app is the composition root: it builds the platform's
// components from configuration and owns their lifetimes. Both the
// server binary and the gridctl tool assemble the platform here, so
// wiring decisions live in exactly one place.
package app

import (
	"context"
	"fmt"
	"time"

	"hivegrid/platform/backup"
	"hivegrid/platform/catalog"
	"hivegrid/platform/config"
	"hivegrid/platform/modules"
	"hivegrid/platform/provision"
	"hivegrid/platform/schema"
	"hivegrid/platform/shared/logger"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

// Platform bundles the wired components of one process.
type Platform struct {
	Config      *config.Config
	Catalog     store.Conn
	Tenants     *catalog.TenantStore
	Modules     *catalog.ModuleStore
	Activations *catalog.ActivationStore
	Registry    *store.Registry
	Initializer *provision.Initializer
	Engine      *backup.Engine
	Manager     *modules.Manager
	Cache       *modules.AccessCache
	Log         *logger.Logger
}

// Build connects to the catalog store and wires every component. The
// caller owns the returned platform and must Close it.
func Build(ctx context.Context, cfg *config.Config) (*Platform, error) {
	log := logger.New("platform")

	catalogConn, err := store.OpenMongo(ctx, cfg.Storage.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	p := &Platform{
		Config:      cfg,
		Catalog:     catalogConn,
		Tenants:     catalog.NewTenantStore(catalogConn),
		Modules:     catalog.NewModuleStore(catalogConn),
		Activations: catalog.NewActivationStore(catalogConn),
		Log:         log,
	}

	p.Registry = store.NewRegistry(store.RegistryConfig{
		BaseAddress: cfg.Storage.BaseAddress,
		Tenants:     p.Tenants,
		Open:        store.OpenMongo,
		Bind:        schema.EnsureBaseline,
		Logger:      log,
	})
	p.Initializer = provision.NewInitializer(p.Registry, log)

	snaps, err := buildSnapshotStore(ctx, cfg)
	if err != nil {
		p.Close(ctx)
		return nil, err
	}
	p.Engine = backup.NewEngine(p.Registry, snaps, log)

	if cfg.Cache.RedisURL != "" {
		ttl := time.Duration(cfg.Cache.AccessTTLMs) * time.Millisecond
		cache, err := modules.OpenAccessCache(ctx, cfg.Cache.RedisURL, ttl)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("open access cache: %w", err)
		}
		p.Cache = cache
	}

	p.Manager = modules.NewManager(modules.ManagerConfig{
		Registry:    p.Registry,
		Modules:     p.Modules,
		Activations: p.Activations,
		Archiver:    p.Engine,
		Cache:       p.Cache,
		Logger:      log,
	})

	if err := p.seedCatalog(ctx); err != nil {
		p.Close(ctx)
		return nil, err
	}
	return p, nil
}

func buildSnapshotStore(ctx context.Context, cfg *config.Config) (backup.SnapshotStore, error) {
	switch cfg.Backup.Backend {
	case "s3":
		snaps, err := backup.OpenS3(ctx, cfg.Backup.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 snapshot store: %w", err)
		}
		return snaps, nil
	default:
		return backup.NewFSStore(cfg.Backup.Root), nil
	}
}

// seedCatalog pushes the configured module catalog into the store.
// Seeding is idempotent by module name.
func (p *Platform) seedCatalog(ctx context.Context) error {
	if len(p.Config.Modules) == 0 {
		return nil
	}
	seed := make([]types.Module, 0, len(p.Config.Modules))
	for _, m := range p.Config.Modules {
		seed = append(seed, types.Module{
			Name:         m.Name,
			Dependencies: m.Dependencies,
			Collections:  m.Collections,
		})
	}
	if err := p.Modules.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed module catalog: %w", err)
	}
	return nil
}

// AdminCredentials returns the configured administrator credentials.
func (p *Platform) AdminCredentials() types.AdminCredentials {
	return types.AdminCredentials{
		Email:     p.Config.Admin.Email,
		Password:  p.Config.Admin.Password,
		FirstName: p.Config.Admin.FirstName,
		LastName:  p.Config.Admin.LastName,
	}
}

// Close releases every open handle.
func (p *Platform) Close(ctx context.Context) {
	if p.Registry != nil {
		p.Registry.CloseAll(ctx)
	}
	if p.Cache != nil {
		p.Cache.Close()
	}
	if p.Catalog != nil {
		p.Catalog.Close(ctx)
	}
}
