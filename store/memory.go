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
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryConn is an in-memory Conn used by tests and the embedded
// single-process mode. Documents are normalized through BSON so that
// reads observe the same shapes the MongoDB backend produces.
type MemoryConn struct {
	name string

	mu          sync.RWMutex
	collections map[string][]bson.M
	uniques     map[string]map[string]bool // collection -> field -> unique
	closed      bool
}

// OpenMemory creates an empty in-memory store for the database named by
// the trailing path segment of address. It satisfies the registry Opener
// signature.
func OpenMemory(_ context.Context, address string) (Conn, error) {
	dbName, err := DatabaseName(address)
	if err != nil {
		return nil, err
	}
	return NewMemoryConn(dbName), nil
}

// NewMemoryConn creates an empty in-memory store with the given database name.
func NewMemoryConn(name string) *MemoryConn {
	return &MemoryConn{
		name:        name,
		collections: make(map[string][]bson.M),
		uniques:     make(map[string]map[string]bool),
	}
}

// Name returns the logical database name.
func (c *MemoryConn) Name() string { return c.name }

// Collection returns a handle to the named collection. The collection
// springs into existence on first write, matching MongoDB behavior.
func (c *MemoryConn) Collection(name string) Collection {
	return &memoryCollection{conn: c, name: name}
}

// EnsureCollection creates the named collection if absent.
func (c *MemoryConn) EnsureCollection(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[name]; !ok {
		c.collections[name] = []bson.M{}
	}
	return nil
}

// ListCollections returns the names of all existing collections.
func (c *MemoryConn) ListCollections(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	return names, nil
}

// EnsureIndex records a single-field index. Unique indexes are enforced
// on subsequent inserts.
func (c *MemoryConn) EnsureIndex(_ context.Context, collection, field string, unique bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uniques[collection] == nil {
		c.uniques[collection] = make(map[string]bool)
	}
	if unique {
		c.uniques[collection][field] = true
	}
	return nil
}

// Ping reports whether the store is still open.
func (c *MemoryConn) Ping(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("memory store %s is closed", c.name)
	}
	return nil
}

// Close marks the store closed. Data is retained so a re-opened embedded
// store behaves like a persistent one within the process lifetime.
func (c *MemoryConn) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type memoryCollection struct {
	conn *MemoryConn
	name string
}

func (m *memoryCollection) Name() string { return m.name }

func (m *memoryCollection) InsertOne(ctx context.Context, doc interface{}) (string, error) {
	n, err := m.InsertMany(ctx, []interface{}{doc})
	if err != nil || n == 0 {
		return "", err
	}
	m.conn.mu.RLock()
	defer m.conn.mu.RUnlock()
	docs := m.conn.collections[m.name]
	last := docs[len(docs)-1]
	id, _ := last["_id"].(string)
	return id, nil
}

func (m *memoryCollection) InsertMany(_ context.Context, docs []interface{}) (int, error) {
	m.conn.mu.Lock()
	defer m.conn.mu.Unlock()

	inserted := 0
	for _, doc := range docs {
		normalized, err := normalizeDocument(doc)
		if err != nil {
			return inserted, err
		}
		// Assign an id only when the document carries none; non-string
		// ids (legacy ObjectID keys) are stored as-is, like MongoDB.
		if id, ok := normalized["_id"]; !ok || id == nil || id == "" {
			normalized["_id"] = NewDocumentID()
		}
		for field, unique := range m.conn.uniques[m.name] {
			if !unique {
				continue
			}
			value, ok := normalized[field]
			if !ok {
				continue
			}
			for _, existing := range m.conn.collections[m.name] {
				if equalValue(existing[field], value) {
					return inserted, fmt.Errorf("duplicate key on %s.%s", m.name, field)
				}
			}
		}
		m.conn.collections[m.name] = append(m.conn.collections[m.name], normalized)
		inserted++
	}
	return inserted, nil
}

func (m *memoryCollection) FindOne(_ context.Context, filter M, out interface{}) error {
	m.conn.mu.RLock()
	defer m.conn.mu.RUnlock()
	for _, doc := range m.conn.collections[m.name] {
		if matchesFilter(doc, filter) {
			return decodeDocument(doc, out)
		}
	}
	return ErrNoDocuments
}

func (m *memoryCollection) Find(_ context.Context, filter M, out interface{}) error {
	// Decode under the read lock: the stored maps are mutated in place
	// by UpdateOne, so they must not escape the critical section.
	m.conn.mu.RLock()
	defer m.conn.mu.RUnlock()
	matched := make([]bson.M, 0)
	for _, doc := range m.conn.collections[m.name] {
		if matchesFilter(doc, filter) {
			matched = append(matched, doc)
		}
	}
	return decodeDocuments(matched, out)
}

func (m *memoryCollection) UpdateOne(_ context.Context, filter M, update M) (int64, error) {
	normalized, err := normalizeDocument(bson.M(update))
	if err != nil {
		return 0, err
	}
	m.conn.mu.Lock()
	defer m.conn.mu.Unlock()
	for _, doc := range m.conn.collections[m.name] {
		if matchesFilter(doc, filter) {
			for k, v := range normalized {
				doc[k] = v
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memoryCollection) DeleteMany(_ context.Context, filter M) (int64, error) {
	m.conn.mu.Lock()
	defer m.conn.mu.Unlock()
	kept := m.conn.collections[m.name][:0]
	var removed int64
	for _, doc := range m.conn.collections[m.name] {
		if matchesFilter(doc, filter) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	m.conn.collections[m.name] = kept
	return removed, nil
}

func (m *memoryCollection) Count(_ context.Context, filter M) (int64, error) {
	m.conn.mu.RLock()
	defer m.conn.mu.RUnlock()
	var n int64
	for _, doc := range m.conn.collections[m.name] {
		if matchesFilter(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memoryCollection) Drop(_ context.Context) error {
	m.conn.mu.Lock()
	defer m.conn.mu.Unlock()
	delete(m.conn.collections, m.name)
	return nil
}

// normalizeDocument round-trips a document through BSON so stored shapes
// match what the MongoDB backend would return.
func normalizeDocument(doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var normalized bson.M
	if err := bson.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return normalized, nil
}

func decodeDocument(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return bson.Unmarshal(raw, out)
}

// decodeDocuments decodes a result set into out, which must be a pointer
// to a slice (of structs or maps).
func decodeDocuments(docs []bson.M, out interface{}) error {
	outValue := reflect.ValueOf(out)
	if outValue.Kind() != reflect.Ptr || outValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("out must be a pointer to a slice, got %T", out)
	}
	sliceValue := outValue.Elem()
	elemType := sliceValue.Type().Elem()
	result := reflect.MakeSlice(sliceValue.Type(), 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := decodeDocument(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	sliceValue.Set(result)
	return nil
}

func matchesFilter(doc bson.M, filter M) bool {
	for field, want := range filter {
		if !equalValue(doc[field], want) {
			return false
		}
	}
	return true
}

// equalValue compares a stored BSON value with a filter value, tolerating
// the numeric widening BSON round-trips introduce.
func equalValue(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
