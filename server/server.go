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

// Package server exposes the module lifecycle over HTTP for admin and
// application callers. The surface is deliberately thin: lifecycle
// transitions, access checks, usage reporting, health and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"hivegrid/platform/catalog"
	"hivegrid/platform/modules"
	"hivegrid/platform/shared/logger"
)

// Config wires the server's collaborators and auth material.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	AdminAPIKey string
	APIKeys     map[string]string // key -> tenant id
	Manager     *modules.Manager
	Tenants     *catalog.TenantStore
	Logger      *logger.Logger
}

// Server is the HTTP admin surface of the platform.
type Server struct {
	cfg     Config
	manager *modules.Manager
	tenants *catalog.TenantStore
	log     *logger.Logger
	http    *http.Server
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.New("server")
	}
	s := &Server{
		cfg:     cfg,
		manager: cfg.Manager,
		tenants: cfg.Tenants,
		log:     log,
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the full handler chain: routing, API key auth on the
// /api subtree, request logging and latency metrics, CORS outermost.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observeMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/tenants/{tenant}/modules/{module}/activate", s.handleActivate).Methods("POST")
	api.HandleFunc("/tenants/{tenant}/modules/{module}/deactivate", s.handleDeactivate).Methods("POST")
	api.HandleFunc("/tenants/{tenant}/modules/{module}/access", s.handleAccess).Methods("GET")
	api.HandleFunc("/tenants/{tenant}/modules/{module}/usage", s.handleUsage).Methods("POST")
	api.HandleFunc("/tenants/{tenant}/modules", s.handleListActive).Methods("GET")

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.log.Info("", "", "server listening", map[string]interface{}{
		"addr": s.cfg.ListenAddr,
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
