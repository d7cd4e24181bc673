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

import (
	"fmt"
	"regexp"
	"strings"
)

// TenantDatabasePrefix is prepended to the subdomain to form the tenant
// database name.
const TenantDatabasePrefix = "tenant_"

var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateSubdomain checks that s is usable as a tenant database suffix:
// lowercase alphanumeric with interior hyphens.
func ValidateSubdomain(s string) error {
	if !subdomainRe.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidSubdomain, s)
	}
	return nil
}

// DeriveAddress computes a tenant store address from the base address by
// substituting tenant_<subdomain> for the trailing path segment. The
// derivation is a pure function; the same inputs always yield the same
// address.
//
//	DeriveAddress("mongodb://db:27017/hivegrid", "acme")
//	  -> "mongodb://db:27017/tenant_acme"
func DeriveAddress(base, subdomain string) (string, error) {
	if err := ValidateSubdomain(subdomain); err != nil {
		return "", err
	}
	idx := strings.LastIndex(base, "/")
	if idx < 0 {
		return "", fmt.Errorf("%w: %q has no path separator", ErrMalformedAddress, base)
	}
	tail := base[idx+1:]
	// A trailing segment that is empty or still part of the authority
	// (host:port, scheme) means there is no default database to replace.
	if tail == "" || strings.ContainsAny(tail, ":@") {
		return "", fmt.Errorf("%w: %q has no trailing database segment", ErrMalformedAddress, base)
	}
	return base[:idx+1] + TenantDatabasePrefix + subdomain, nil
}

// DatabaseName extracts the trailing database segment of a store address.
func DatabaseName(address string) (string, error) {
	idx := strings.LastIndex(address, "/")
	if idx < 0 || idx == len(address)-1 {
		return "", fmt.Errorf("%w: %q has no trailing database segment", ErrMalformedAddress, address)
	}
	name := address[idx+1:]
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.ContainsAny(name, ":@") {
		return "", fmt.Errorf("%w: %q has no trailing database segment", ErrMalformedAddress, address)
	}
	return name, nil
}
