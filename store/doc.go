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

/*
Package store provides access to tenant-isolated document stores and the
registry that owns their live handles.

# Overview

Every tenant's data lives in its own logical database, addressed by
substituting tenant_<subdomain> as the trailing path segment of the base
store address. The Conn and Collection interfaces front the backing
document store; two implementations are provided:

  - MongoDB (production), via go.mongodb.org/mongo-driver
  - in-memory (embedded mode and tests)

# Registry

The Registry is the single owner of live handles. Callers borrow a Conn
for the duration of a call and must not retain it; the registry may close
and evict it at any time.

	reg := store.NewRegistry(store.RegistryConfig{
	    BaseAddress: "mongodb://localhost:27017/hivegrid",
	    Tenants:     tenantStore,
	})
	conn, err := reg.GetOrOpen(ctx, tenantID)

Concurrent first access for the same tenant converges on exactly one
cached handle.
*/
package store
