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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"hivegrid/platform/catalog"
	"hivegrid/platform/modules"
	"hivegrid/platform/shared/types"
	"hivegrid/platform/store"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps the lifecycle error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modules.ErrModuleNotFound),
		errors.Is(err, store.ErrTenantNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrTenantInactive):
		return http.StatusForbidden
	case errors.Is(err, modules.ErrAlreadyActive),
		errors.Is(err, modules.ErrNotActive),
		errors.Is(err, modules.ErrDependencyNotActive),
		errors.Is(err, modules.ErrDependentModulesActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// resolveModuleID turns the path's module name into a catalog id.
func (s *Server) resolveModuleID(r *http.Request) (tenantID, moduleID string, err error) {
	vars := mux.Vars(r)
	tenantID = vars["tenant"]
	mod, err := s.manager.ModuleByName(r.Context(), vars["module"])
	if err != nil {
		return "", "", err
	}
	return tenantID, mod.ID, nil
}

type activateRequest struct {
	Quota types.QuotaLimits `json:"quota"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	tenantID, moduleID, err := s.resolveModuleID(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.Activate(r.Context(), tenantID, moduleID, req.Quota); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant": tenantID,
		"module": mux.Vars(r)["module"],
		"active": true,
	})
}

type deactivateRequest struct {
	Backup bool `json:"backup"`
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	tenantID, moduleID, err := s.resolveModuleID(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.Deactivate(r.Context(), tenantID, moduleID, req.Backup); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant": tenantID,
		"module": mux.Vars(r)["module"],
		"active": false,
	})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	allowed, err := s.manager.HasModuleAccess(r.Context(), vars["tenant"], vars["module"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":  vars["tenant"],
		"module":  vars["module"],
		"allowed": allowed,
	})
}

type usageRequest struct {
	Metric string `json:"metric"`
	Value  int64  `json:"value"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Metric == "" {
		writeError(w, http.StatusBadRequest, "metric and value are required")
		return
	}

	tenantID, moduleID, err := s.resolveModuleID(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.UpdateUsageStat(r.Context(), tenantID, moduleID, req.Metric, req.Value); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	exceeded, err := s.manager.HasExceededQuota(r.Context(), tenantID, mux.Vars(r)["module"], req.Metric)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":   req.Metric,
		"value":    req.Value,
		"exceeded": exceeded,
	})
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant"]
	rows, err := s.manager.ActiveModules(r.Context(), tenantID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":  tenantID,
		"modules": rows,
	})
}
