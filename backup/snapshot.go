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

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

// ErrSnapshotMissing is returned by a SnapshotStore when no snapshot
// exists at the requested location. Restore treats it as skip-with-warning.
var ErrSnapshotMissing = errors.New("backup: snapshot missing")

// SnapshotStore persists serialized record sets. Locations are
// slash-separated relative paths.
type SnapshotStore interface {
	Write(ctx context.Context, location string, data []byte) error
	Read(ctx context.Context, location string) ([]byte, error)
}

// DestinationFor builds the canonical backup location for a module's
// collections: backups/<tenantID>/<moduleID>/<unixMillis>.
func DestinationFor(tenantID, moduleID string, takenAt time.Time) string {
	return path.Join("backups", tenantID, moduleID, strconv.FormatInt(takenAt.UnixMilli(), 10))
}

// snapshotLocation returns the snapshot file location for one
// collection under a backup destination.
func snapshotLocation(destination, collection string) string {
	return path.Join(destination, collection, collection+".snapshot")
}

// FSStore stores snapshots as files under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Write(_ context.Context, location string, data []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(location))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *FSStore) Read(_ context.Context, location string) ([]byte, error) {
	full := filepath.Join(s.root, filepath.FromSlash(location))
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}
