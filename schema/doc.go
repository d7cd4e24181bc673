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
Package schema binds the baseline entity definitions to an open tenant
store handle.

# Overview

Every tenant store carries the same fixed set of baseline entities: user,
role, permission, user-role link, audit log, and settings. Binding is a
static table of typed repository constructors invoked against a store
handle:

	repos := schema.Bind(conn)
	user, err := repos.Users.GetByEmail(ctx, "admin@acme.io")

Binding has no per-connection state and re-binding an already-bound
handle is a safe no-op. EnsureBaseline creates the baseline collections
and uniqueness indexes; the registry invokes it whenever a handle is
opened.

The user repository hashes passwords with bcrypt before persistence.
*/
package schema
