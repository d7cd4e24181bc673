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

// CollectionModules is the catalog collection holding module catalog entries.
const CollectionModules = "modules"

// ModuleStore reads the static module catalog.
type ModuleStore struct {
	coll store.Collection
}

// NewModuleStore creates a ModuleStore over the catalog connection.
func NewModuleStore(conn store.Conn) *ModuleStore {
	return &ModuleStore{coll: conn.Collection(CollectionModules)}
}

// GetByID returns the module with the given identifier.
func (s *ModuleStore) GetByID(ctx context.Context, id string) (*types.Module, error) {
	var module types.Module
	err := s.coll.FindOne(ctx, store.M{"_id": id}, &module)
	if err == store.ErrNoDocuments {
		return nil, fmt.Errorf("%w: module %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get module %s: %w", id, err)
	}
	return &module, nil
}

// GetByName returns the module with the given unique name.
func (s *ModuleStore) GetByName(ctx context.Context, name string) (*types.Module, error) {
	var module types.Module
	err := s.coll.FindOne(ctx, store.M{"name": name}, &module)
	if err == store.ErrNoDocuments {
		return nil, fmt.Errorf("%w: module %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get module by name %s: %w", name, err)
	}
	return &module, nil
}

// List returns every catalog entry.
func (s *ModuleStore) List(ctx context.Context) ([]types.Module, error) {
	var modules []types.Module
	if err := s.coll.Find(ctx, store.M{}, &modules); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// Seed inserts catalog entries that are not already present, keyed by
// name. Administrative seeding is the only write path for the module
// catalog.
func (s *ModuleStore) Seed(ctx context.Context, modules []types.Module) error {
	for i := range modules {
		m := modules[i]
		if m.ID == "" {
			m.ID = store.NewDocumentID()
		}
		_, err := s.GetByName(ctx, m.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.coll.InsertOne(ctx, m); err != nil {
			return fmt.Errorf("seed module %s: %w", m.Name, err)
		}
	}
	return nil
}
