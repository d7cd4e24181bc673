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

// Package backup snapshots tenant collections to a SnapshotStore and
// restores them. Both directions are best-effort per collection: a
// failed collection is recorded in the report and logged, never
// aborting the remaining collections.
package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hivegrid/platform/shared/logger"
	"hivegrid/platform/store"
)

// CollectionResult records the outcome for one collection.
type CollectionResult struct {
	Collection string
	Records    int
	Skipped    bool
	Err        error
}

// Report accumulates per-collection outcomes of one backup or restore.
type Report struct {
	TenantID string
	Results  []CollectionResult
}

// Failed returns the collections whose result carries an error.
func (r *Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Collection)
		}
	}
	return failed
}

// Partial reports whether at least one collection failed.
func (r *Report) Partial() bool {
	return len(r.Failed()) > 0
}

// Engine reads and writes tenant collection snapshots.
type Engine struct {
	registry *store.Registry
	snaps    SnapshotStore
	log      *logger.Logger
}

func NewEngine(registry *store.Registry, snaps SnapshotStore, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.New("backup")
	}
	return &Engine{registry: registry, snaps: snaps, log: log}
}

// Backup snapshots each named collection under destination. An empty
// collection still produces an empty-array snapshot so restore can tell
// "backed up but empty" apart from "never backed up". The returned
// error is non-nil only when the tenant handle cannot be borrowed.
func (e *Engine) Backup(ctx context.Context, tenantID, destination string, collections []string) (*Report, error) {
	conn, err := e.registry.GetOrOpen(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("borrow handle: %w", err)
	}

	report := &Report{TenantID: tenantID}
	for _, name := range collections {
		result := e.backupCollection(ctx, conn, destination, name)
		if result.Err != nil {
			e.log.ErrorWithErr(tenantID, "", "collection backup failed", result.Err, map[string]interface{}{
				"collection":  name,
				"destination": destination,
			})
		}
		report.Results = append(report.Results, result)
	}

	e.log.Info(tenantID, "", "backup finished", map[string]interface{}{
		"destination": destination,
		"collections": len(collections),
		"failed":      len(report.Failed()),
	})
	return report, nil
}

func (e *Engine) backupCollection(ctx context.Context, conn store.Conn, destination, name string) CollectionResult {
	result := CollectionResult{Collection: name}

	var docs []bson.M
	if err := conn.Collection(name).Find(ctx, store.M{}, &docs); err != nil {
		result.Err = fmt.Errorf("read collection: %w", err)
		return result
	}

	records := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		records = append(records, flattenDocument(doc))
	}

	data, err := json.Marshal(records)
	if err != nil {
		result.Err = fmt.Errorf("encode snapshot: %w", err)
		return result
	}

	if err := e.snaps.Write(ctx, snapshotLocation(destination, name), data); err != nil {
		result.Err = err
		return result
	}

	result.Records = len(records)
	return result
}

// Restore replaces each named collection with its snapshot under
// source. Missing snapshots are skipped with a warning. The returned
// error is non-nil only when the tenant handle cannot be borrowed.
func (e *Engine) Restore(ctx context.Context, tenantID, source string, collections []string) (*Report, error) {
	conn, err := e.registry.GetOrOpen(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("borrow handle: %w", err)
	}

	report := &Report{TenantID: tenantID}
	for _, name := range collections {
		result := e.restoreCollection(ctx, conn, source, name)
		if result.Skipped {
			e.log.Warn(tenantID, "", "no snapshot for collection, skipping", map[string]interface{}{
				"collection": name,
				"source":     source,
			})
		}
		if result.Err != nil {
			e.log.ErrorWithErr(tenantID, "", "collection restore failed", result.Err, map[string]interface{}{
				"collection": name,
				"source":     source,
			})
		}
		report.Results = append(report.Results, result)
	}

	e.log.Info(tenantID, "", "restore finished", map[string]interface{}{
		"source":      source,
		"collections": len(collections),
		"failed":      len(report.Failed()),
	})
	return report, nil
}

func (e *Engine) restoreCollection(ctx context.Context, conn store.Conn, source, name string) CollectionResult {
	result := CollectionResult{Collection: name}

	data, err := e.snaps.Read(ctx, snapshotLocation(source, name))
	if err == ErrSnapshotMissing {
		result.Skipped = true
		return result
	}
	if err != nil {
		result.Err = err
		return result
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		result.Err = fmt.Errorf("decode snapshot: %w", err)
		return result
	}

	coll := conn.Collection(name)
	if err := coll.Drop(ctx); err != nil {
		result.Err = fmt.Errorf("drop collection: %w", err)
		return result
	}
	if err := conn.EnsureCollection(ctx, name); err != nil {
		result.Err = fmt.Errorf("recreate collection: %w", err)
		return result
	}

	if len(records) > 0 {
		docs := make([]interface{}, len(records))
		for i, rec := range records {
			docs[i] = rec
		}
		inserted, err := coll.InsertMany(ctx, docs)
		if err != nil {
			result.Err = fmt.Errorf("insert records: %w", err)
			return result
		}
		result.Records = inserted
	}
	return result
}

// flattenDocument converts a BSON document into JSON-safe values.
func flattenDocument(doc bson.M) map[string]interface{} {
	result := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		result[k] = flattenValue(v)
	}
	return result
}

func flattenValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Timestamp:
		return map[string]interface{}{"t": val.T, "i": val.I}
	case primitive.Binary:
		return val.Data
	case bson.M:
		return flattenDocument(val)
	case bson.A:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = flattenValue(item)
		}
		return result
	case primitive.D:
		result := make(map[string]interface{}, len(val))
		for _, elem := range val {
			result[elem.Key] = flattenValue(elem.Value)
		}
		return result
	default:
		return val
	}
}
