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

package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// authMiddleware checks the X-API-Key header. The admin key may act
// for any tenant; a tenant key only for its own tenant.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		if s.cfg.AdminAPIKey != "" && key == s.cfg.AdminAPIKey {
			next.ServeHTTP(w, r)
			return
		}

		tenantID, ok := s.cfg.APIKeys[key]
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown API key")
			return
		}
		if pathTenant := mux.Vars(r)["tenant"]; pathTenant != "" && pathTenant != tenantID {
			writeError(w, http.StatusForbidden, "API key not valid for tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}
