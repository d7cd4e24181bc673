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
	"strings"
	"unicode"

	"hivegrid/platform/shared/types"
)

// canonicalMetric reduces a quota or usage key to its bare metric name
// so that "maxHospitals", "currentHospitals" and "hospitals" all refer
// to the same metric.
func canonicalMetric(key string) string {
	if key == "" {
		return ""
	}
	for _, prefix := range []string{"max", "current"} {
		rest := strings.TrimPrefix(key, prefix)
		if rest != key && rest != "" && unicode.IsUpper(rune(rest[0])) {
			key = rest
			break
		}
	}
	return strings.ToLower(key[:1]) + key[1:]
}

// matchLimit finds the quota ceiling for a metric, matching keys by
// canonical metric name.
func matchLimit(quota types.QuotaLimits, metric string) (int64, bool) {
	if len(quota) == 0 {
		return 0, false
	}
	if limit, ok := quota[metric]; ok {
		return limit, true
	}
	want := canonicalMetric(metric)
	for key, limit := range quota {
		if canonicalMetric(key) == want {
			return limit, true
		}
	}
	return 0, false
}

// matchStat finds the current usage value for a metric, matching keys
// by canonical metric name.
func matchStat(usage types.UsageStats, metric string) (int64, bool) {
	if len(usage) == 0 {
		return 0, false
	}
	if value, ok := usage[metric]; ok {
		return value, true
	}
	want := canonicalMetric(metric)
	for key, value := range usage {
		if canonicalMetric(key) == want {
			return value, true
		}
	}
	return 0, false
}
