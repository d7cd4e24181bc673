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
Package types provides shared type definitions used across HiveGrid components.

# Overview

This package contains the domain records shared between the store registry,
module lifecycle manager, provisioning, and migration components. It is the
single source of truth for the tenant, module catalog, and activation shapes.

# Records

  - Tenant: a customer organization with its own isolated data store.
  - Module: a catalog entry naming a feature unit, its dependencies, and the
    collections it owns.
  - TenantModuleActivation: the per-(tenant, module) row tracking active
    state, quota ceilings, usage statistics, and the most recent backup.

# Thread Safety

All types in this package are plain value types; copies are safe for
concurrent use.
*/
package types
