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

import "github.com/prometheus/client_golang/prometheus"

var (
	promActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivegrid_module_transitions_total",
			Help: "Module lifecycle transitions by direction",
		},
		[]string{"direction"},
	)

	promAccessCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivegrid_module_access_cache_total",
			Help: "Module access cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(promActivations)
	prometheus.MustRegister(promAccessCacheHits)
}
