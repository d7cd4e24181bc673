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

import "errors"

// Structural lifecycle errors, surfaced synchronously to the caller.
var (
	ErrModuleNotFound         = errors.New("modules: module not found")
	ErrDependencyNotActive    = errors.New("modules: dependency not active")
	ErrAlreadyActive          = errors.New("modules: already active")
	ErrNotActive              = errors.New("modules: not active")
	ErrDependentModulesActive = errors.New("modules: dependent modules active")
)
