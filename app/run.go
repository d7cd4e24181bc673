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

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hivegrid/platform/config"
	"hivegrid/platform/server"
)

// RunServer loads configuration, builds the platform and serves HTTP
// until SIGINT or SIGTERM.
func RunServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer platform.Close(context.Background())

	srv := server.New(server.Config{
		ListenAddr:  cfg.Server.ListenAddr,
		CORSOrigins: cfg.Server.CORSOrigins,
		AdminAPIKey: cfg.Auth.AdminAPIKey,
		APIKeys:     cfg.Auth.APIKeys,
		Manager:     platform.Manager,
		Tenants:     platform.Tenants,
		Logger:      platform.Log,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
