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

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promOpenHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hivegrid_store_open_handles",
			Help: "Number of cached tenant store handles",
		},
	)
	promStoreOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivegrid_store_opens_total",
			Help: "Total number of tenant store open attempts",
		},
		[]string{"result"},
	)
	promStoreEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hivegrid_store_evictions_total",
			Help: "Total number of tenant store handle evictions",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promOpenHandles)
	prometheus.MustRegister(promStoreOpens)
	prometheus.MustRegister(promStoreEvictions)
}
