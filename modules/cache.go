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

package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultAccessTTL bounds how stale a cached access answer can get.
const DefaultAccessTTL = 30 * time.Second

// AccessCache caches HasModuleAccess answers in Redis. All cache
// failures degrade to a miss; the store stays the source of truth.
type AccessCache struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenAccessCache connects to Redis at redisURL
// (redis://host:port or redis://host:port/db).
func OpenAccessCache(ctx context.Context, redisURL string, ttl time.Duration) (*AccessCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewAccessCache(client, ttl), nil
}

func NewAccessCache(client *redis.Client, ttl time.Duration) *AccessCache {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &AccessCache{client: client, ttl: ttl}
}

func accessKey(tenantID, moduleName string) string {
	return fmt.Sprintf("module_access:%s:%s", tenantID, moduleName)
}

// Get returns the cached answer and whether one was present.
func (c *AccessCache) Get(ctx context.Context, tenantID, moduleName string) (allowed, ok bool) {
	val, err := c.client.Get(ctx, accessKey(tenantID, moduleName)).Result()
	if err == redis.Nil {
		promAccessCacheHits.WithLabelValues("miss").Inc()
		return false, false
	}
	if err != nil {
		promAccessCacheHits.WithLabelValues("error").Inc()
		return false, false
	}
	promAccessCacheHits.WithLabelValues("hit").Inc()
	return val == "1", true
}

// Set records an answer for the configured TTL.
func (c *AccessCache) Set(ctx context.Context, tenantID, moduleName string, allowed bool) {
	val := "0"
	if allowed {
		val = "1"
	}
	c.client.Set(ctx, accessKey(tenantID, moduleName), val, c.ttl)
}

// Invalidate drops the cached answer after a lifecycle transition.
func (c *AccessCache) Invalidate(ctx context.Context, tenantID, moduleName string) {
	c.client.Del(ctx, accessKey(tenantID, moduleName))
}

// Close releases the Redis connection pool.
func (c *AccessCache) Close() error {
	return c.client.Close()
}
