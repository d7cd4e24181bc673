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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTestDoc struct {
	ID     string `bson:"_id,omitempty"`
	Name   string `bson:"name"`
	Email  string `bson:"email,omitempty"`
	Count  int64  `bson:"count"`
	Active bool   `bson:"active"`
}

func TestMemoryCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	id, err := coll.InsertOne(ctx, memoryTestDoc{Name: "alpha", Count: 3, Active: true})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got memoryTestDoc
	require.NoError(t, coll.FindOne(ctx, M{"_id": id}, &got))
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, int64(3), got.Count)
	assert.True(t, got.Active)
}

func TestMemoryCollectionFindFilters(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	for _, d := range []memoryTestDoc{
		{Name: "a", Count: 1, Active: true},
		{Name: "b", Count: 2, Active: false},
		{Name: "c", Count: 1, Active: true},
	} {
		_, err := coll.InsertOne(ctx, d)
		require.NoError(t, err)
	}

	var active []memoryTestDoc
	require.NoError(t, coll.Find(ctx, M{"active": true}, &active))
	assert.Len(t, active, 2)

	var ones []memoryTestDoc
	require.NoError(t, coll.Find(ctx, M{"count": 1}, &ones))
	assert.Len(t, ones, 2)

	n, err := coll.Count(ctx, M{"active": false})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCollectionFindOneNoDocuments(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	var got memoryTestDoc
	err := coll.FindOne(ctx, M{"name": "missing"}, &got)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestMemoryCollectionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	id, err := coll.InsertOne(ctx, memoryTestDoc{Name: "alpha", Count: 1})
	require.NoError(t, err)

	modified, err := coll.UpdateOne(ctx, M{"_id": id}, M{"count": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	var got memoryTestDoc
	require.NoError(t, coll.FindOne(ctx, M{"_id": id}, &got))
	assert.Equal(t, int64(9), got.Count)

	removed, err := coll.DeleteMany(ctx, M{"_id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := coll.Count(ctx, M{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryCollectionConcurrentFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	id, err := coll.InsertOne(ctx, memoryTestDoc{Name: "alpha", Count: 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				var docs []memoryTestDoc
				if err := coll.Find(ctx, M{"_id": id}, &docs); err != nil {
					t.Errorf("find: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := coll.UpdateOne(ctx, M{"_id": id}, M{"count": int64(i)}); err != nil {
				t.Errorf("update: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestMemoryUniqueIndexEnforced(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	require.NoError(t, conn.EnsureIndex(ctx, "users", "email", true))

	coll := conn.Collection("users")
	_, err := coll.InsertOne(ctx, memoryTestDoc{Name: "a", Email: "a@acme.io"})
	require.NoError(t, err)

	_, err = coll.InsertOne(ctx, memoryTestDoc{Name: "b", Email: "a@acme.io"})
	assert.Error(t, err)
}

func TestMemoryEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")

	require.NoError(t, conn.EnsureCollection(ctx, "hospitals"))

	_, err := conn.Collection("hospitals").InsertOne(ctx, memoryTestDoc{Name: "general"})
	require.NoError(t, err)

	// A second ensure must leave existing data untouched.
	require.NoError(t, conn.EnsureCollection(ctx, "hospitals"))
	n, err := conn.Collection("hospitals").Count(ctx, M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	names, err := conn.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "hospitals")
}

func TestMemoryDropCollection(t *testing.T) {
	ctx := context.Background()
	conn := NewMemoryConn("tenant_test")
	coll := conn.Collection("widgets")

	_, err := coll.InsertOne(ctx, memoryTestDoc{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, coll.Drop(ctx))

	n, err := coll.Count(ctx, M{})
	require.NoError(t, err)
	assert.Zero(t, n)

	// Dropping an absent collection is a no-op.
	require.NoError(t, conn.Collection("ghost").Drop(ctx))
}

func TestOpenMemoryParsesAddress(t *testing.T) {
	conn, err := OpenMemory(context.Background(), "mongodb://db:27017/tenant_acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme", conn.Name())

	_, err = OpenMemory(context.Background(), "mongodb://db:27017")
	assert.ErrorIs(t, err, ErrMalformedAddress)
}
