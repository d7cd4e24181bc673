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

// Package config loads the platform configuration from a YAML file.
// Environment variables referenced as ${VAR} or ${VAR:-default} are
// expanded before parsing, so credentials stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"hivegrid/platform/backup"
)

// Config is the root configuration of the platform process.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Backup  BackupConfig  `yaml:"backup"`
	Cache   CacheConfig   `yaml:"cache"`
	Auth    AuthConfig    `yaml:"auth"`
	Admin   AdminConfig   `yaml:"admin"`
	Modules []ModuleSeed  `yaml:"modules"`
}

// ServerConfig configures the HTTP admin surface.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig configures the document backend. BaseAddress ends in
// the catalog database name; tenant store addresses are derived from it.
type StorageConfig struct {
	BaseAddress string `yaml:"base_address"`
}

// BackupConfig selects the snapshot backend.
type BackupConfig struct {
	Backend string          `yaml:"backend"` // "fs" or "s3"
	Root    string          `yaml:"root"`    // fs backend root directory
	S3      backup.S3Config `yaml:"s3"`
}

// CacheConfig configures the optional Redis access cache. An empty
// RedisURL disables caching.
type CacheConfig struct {
	RedisURL    string `yaml:"redis_url"`
	AccessTTLMs int    `yaml:"access_ttl_ms"`
}

// AuthConfig maps API keys to tenant identifiers. The admin key may
// act for any tenant.
type AuthConfig struct {
	AdminAPIKey string            `yaml:"admin_api_key"`
	APIKeys     map[string]string `yaml:"api_keys"` // key -> tenant id
}

// AdminConfig supplies the administrator credentials used when seeding
// or repairing a tenant store.
type AdminConfig struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// ModuleSeed describes one module catalog entry to seed at startup.
type ModuleSeed struct {
	Name         string   `yaml:"name"`
	Dependencies []string `yaml:"dependencies"`
	Collections  []string `yaml:"collections"`
}

// Load reads, expands and parses the configuration file, then applies
// defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Backup.Backend == "" {
		c.Backup.Backend = "fs"
	}
	// Snapshot locations already start with "backups/", so the fs root
	// defaults to the working directory rather than nesting another
	// backups segment.
	if c.Backup.Backend == "fs" && c.Backup.Root == "" {
		c.Backup.Root = "."
	}
	if c.Cache.AccessTTLMs == 0 {
		c.Cache.AccessTTLMs = 30000
	}
}

// Validate rejects configurations that cannot produce a working
// process.
func (c *Config) Validate() error {
	if c.Storage.BaseAddress == "" {
		return fmt.Errorf("config: storage.base_address is required")
	}
	if !strings.Contains(c.Storage.BaseAddress, "/") {
		return fmt.Errorf("config: storage.base_address %q has no database segment", c.Storage.BaseAddress)
	}
	switch c.Backup.Backend {
	case "fs":
	case "s3":
		if c.Backup.S3.Bucket == "" {
			return fmt.Errorf("config: backup.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown backup backend %q", c.Backup.Backend)
	}
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
