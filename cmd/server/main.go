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

// Package main is the entry point for the HiveGrid platform server.
//
// The server fronts the multi-tenant platform core: per-tenant store
// handles, module lifecycle management, quota observation and the
// backup/restore engine, exposed over a small authenticated HTTP API.
//
// Usage:
//
//	./server -config platform.yaml
package main

import (
	"flag"
	"fmt"
	"os"

	"hivegrid/platform/app"
)

func main() {
	configPath := flag.String("config", "platform.yaml", "path to the platform configuration file")
	flag.Parse()

	if err := app.RunServer(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
