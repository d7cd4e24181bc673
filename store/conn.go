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
)

// ErrNoDocuments is returned by FindOne when no document matches the filter.
var ErrNoDocuments = errors.New("store: no documents in result")

// M is a filter or update document. Filters used by the core are top-level
// equality matches only.
type M map[string]interface{}

// Collection is a named record set inside one tenant store.
type Collection interface {
	Name() string

	// InsertOne inserts a single document and returns its identifier.
	InsertOne(ctx context.Context, doc interface{}) (string, error)

	// InsertMany inserts documents in order and returns how many were written.
	InsertMany(ctx context.Context, docs []interface{}) (int, error)

	// FindOne decodes the first matching document into out, or returns
	// ErrNoDocuments.
	FindOne(ctx context.Context, filter M, out interface{}) error

	// Find decodes every matching document into out, which must be a
	// pointer to a slice.
	Find(ctx context.Context, filter M, out interface{}) error

	// UpdateOne applies update as a field-set to the first matching
	// document and returns the number of documents modified.
	UpdateOne(ctx context.Context, filter M, update M) (int64, error)

	// DeleteMany removes every matching document.
	DeleteMany(ctx context.Context, filter M) (int64, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, filter M) (int64, error)

	// Drop removes the collection entirely. Dropping a collection that
	// does not exist is a no-op.
	Drop(ctx context.Context) error
}

// Conn is an open connection to one logical store (a tenant store or the
// central catalog). Handles are exclusively owned by the Registry; other
// components borrow them per call.
type Conn interface {
	// Name returns the logical database name.
	Name() string

	Collection(name string) Collection

	// EnsureCollection creates the named collection if absent. A
	// pre-existing collection is left untouched.
	EnsureCollection(ctx context.Context, name string) error

	// ListCollections returns the names of all existing collections.
	ListCollections(ctx context.Context) ([]string, error)

	// EnsureIndex creates a single-field index, optionally unique.
	// Safe to call repeatedly.
	EnsureIndex(ctx context.Context, collection, field string, unique bool) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
