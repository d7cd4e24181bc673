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
Package catalog provides typed access to the central catalog: tenant
records, the static module catalog, and per-tenant module activation rows.

The catalog lives in the base store database (the one named by the
trailing path segment of the configured base address). Module catalog
entries are seed data and immutable at runtime; activation rows are
created on first activation and flipped, never hard-deleted.
*/
package catalog
