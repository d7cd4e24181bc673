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
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultConnectTimeout is the default connection timeout
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 10
)

// MongoConn is a Conn backed by a MongoDB database. Each tenant store is a
// separate database on the deployment, so every MongoConn owns its own
// client.
type MongoConn struct {
	client *mongo.Client
	db     *mongo.Database
	dbName string
}

// OpenMongo connects to the database named by the trailing path segment of
// address. It verifies the connection with a ping before returning.
func OpenMongo(ctx context.Context, address string) (Conn, error) {
	dbName, err := DatabaseName(address)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().
		ApplyURI(address).
		SetMaxPoolSize(DefaultMaxPoolSize).
		SetMinPoolSize(DefaultMinPoolSize).
		SetConnectTimeout(DefaultConnectTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetAppName("hivegrid-platform")

	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, NewConnError("connect", address, err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, NewConnError("ping", address, err)
	}

	return &MongoConn{
		client: client,
		db:     client.Database(dbName),
		dbName: dbName,
	}, nil
}

// Name returns the logical database name.
func (c *MongoConn) Name() string { return c.dbName }

// Collection returns a handle to the named collection.
func (c *MongoConn) Collection(name string) Collection {
	return &mongoCollection{coll: c.db.Collection(name)}
}

// EnsureCollection creates the named collection if it does not exist.
func (c *MongoConn) EnsureCollection(ctx context.Context, name string) error {
	existing, err := c.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if err := c.db.CreateCollection(ctx, name); err != nil {
		// A concurrent creator winning the race is fine.
		if cmdErr, ok := err.(mongo.CommandError); ok && cmdErr.HasErrorCode(48) {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// ListCollections returns the names of all collections in the database.
func (c *MongoConn) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// EnsureIndex creates a single-field index on the collection.
func (c *MongoConn) EnsureIndex(ctx context.Context, collection, field string, unique bool) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(unique),
	}
	if _, err := c.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("create index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (c *MongoConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (c *MongoConn) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.client.Disconnect(disconnectCtx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (m *mongoCollection) Name() string { return m.coll.Name() }

func (m *mongoCollection) InsertOne(ctx context.Context, doc interface{}) (string, error) {
	res, err := m.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	switch id := res.InsertedID.(type) {
	case string:
		return id, nil
	default:
		return fmt.Sprintf("%v", id), nil
	}
}

func (m *mongoCollection) InsertMany(ctx context.Context, docs []interface{}) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		if res != nil {
			return len(res.InsertedIDs), err
		}
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

func (m *mongoCollection) FindOne(ctx context.Context, filter M, out interface{}) error {
	err := m.coll.FindOne(ctx, bson.M(filter)).Decode(out)
	if err == mongo.ErrNoDocuments {
		return ErrNoDocuments
	}
	return err
}

func (m *mongoCollection) Find(ctx context.Context, filter M, out interface{}) error {
	cursor, err := m.coll.Find(ctx, bson.M(filter))
	if err != nil {
		return err
	}
	defer func() { _ = cursor.Close(ctx) }()
	return cursor.All(ctx, out)
}

func (m *mongoCollection) UpdateOne(ctx context.Context, filter M, update M) (int64, error) {
	res, err := m.coll.UpdateOne(ctx, bson.M(filter), bson.M{"$set": bson.M(update)})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter M) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *mongoCollection) Count(ctx context.Context, filter M) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M(filter))
}

func (m *mongoCollection) Drop(ctx context.Context) error {
	return m.coll.Drop(ctx)
}

// NewDocumentID returns a fresh identifier for a document.
func NewDocumentID() string { return uuid.New().String() }
