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

// Package main implements the gridctl CLI tool for HiveGrid platform
// administration: migrating tenants off the legacy shared store and
// validating or repairing isolated tenant stores.
//
// gridctl exits non-zero only on unrecoverable setup failure; tenants
// that were skipped or partially migrated are reported on the console.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hivegrid/platform/app"
	"hivegrid/platform/config"
	"hivegrid/platform/migration"
	"hivegrid/platform/shared/types"
)

var version = "1.0.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "gridctl",
		Short:   "HiveGrid platform CLI tool",
		Long:    `gridctl manages HiveGrid tenant stores: shared-to-isolated migration, validation and repair.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "platform.yaml", "path to the platform configuration file")

	rootCmd.AddCommand(migrateAllCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(validateCmd(&configPath))
	rootCmd.AddCommand(fixCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withTool builds the platform and migration tool, runs fn, and tears
// everything down. Errors returned here are setup failures.
func withTool(configPath string, fn func(ctx context.Context, tool *migration.Tool, platform *app.Platform) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	platform, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer platform.Close(ctx)

	tool := migration.NewTool(migration.Config{
		Registry:    platform.Registry,
		Tenants:     platform.Tenants,
		Initializer: platform.Initializer,
		Shared:      platform.Catalog,
		Confirm:     confirmOnTerminal,
		Logger:      platform.Log,
	})
	return fn(ctx, tool, platform)
}

// confirmOnTerminal asks the operator before a destructive rebuild.
func confirmOnTerminal(tenant *types.Tenant) bool {
	fmt.Printf("Tenant %q (%s) already has data in its isolated store.\n", tenant.Name, tenant.Subdomain)
	fmt.Print("Wipe and rebuild it? [y/N]: ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func migrateAllCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-all",
		Short: "Migrate every active tenant to an isolated store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTool(*configPath, func(ctx context.Context, tool *migration.Tool, _ *app.Platform) error {
				report, err := tool.MigrateAll(ctx)
				if err != nil {
					return err
				}
				for _, res := range report.Results {
					if res.Err != nil {
						fmt.Printf("FAILED  %-20s %v\n", res.Subdomain, res.Err)
						continue
					}
					fmt.Printf("OK      %-20s users=%d audit_logs=%d\n", res.Subdomain, res.Users, res.AuditLogs)
				}
				if failed := report.Failed(); len(failed) > 0 {
					fmt.Printf("%d tenant(s) not migrated: %s\n", len(failed), strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <subdomain>",
		Short: "Migrate one tenant to an isolated store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTool(*configPath, func(ctx context.Context, tool *migration.Tool, platform *app.Platform) error {
				tenant, err := platform.Tenants.GetBySubdomain(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load tenant %s: %w", args[0], err)
				}
				result, err := tool.MigrateOne(ctx, tenant)
				if err != nil {
					fmt.Printf("FAILED  %-20s %v\n", args[0], err)
					return nil
				}
				fmt.Printf("OK      %-20s users=%d audit_logs=%d\n", result.Subdomain, result.Users, result.AuditLogs)
				return nil
			})
		},
	}
}

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every active tenant's isolated store integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTool(*configPath, func(ctx context.Context, tool *migration.Tool, _ *app.Platform) error {
				results, err := tool.ValidateAll(ctx)
				if err != nil {
					return err
				}
				for _, res := range results {
					switch {
					case res.Err != nil:
						fmt.Printf("ERROR   %-20s %v\n", res.Subdomain, res.Err)
					case len(res.Issues) > 0:
						fmt.Printf("BROKEN  %-20s %s\n", res.Subdomain, strings.Join(res.Issues, "; "))
					default:
						fmt.Printf("OK      %-20s\n", res.Subdomain)
					}
				}
				return nil
			})
		},
	}
}

func fixCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <subdomain>",
		Short: "Repair one tenant's isolated store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTool(*configPath, func(ctx context.Context, tool *migration.Tool, platform *app.Platform) error {
				if err := tool.FixTenantDatabase(ctx, args[0], platform.AdminCredentials()); err != nil {
					fmt.Printf("FAILED  %-20s %v\n", args[0], err)
					return nil
				}
				fmt.Printf("OK      %-20s repaired\n", args[0])
				return nil
			})
		},
	}
}
