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

import "errors"

var (
	// ErrTenantNotFound is returned when a store handle is requested for
	// an unknown tenant identifier.
	ErrTenantNotFound = errors.New("store: tenant not found")

	// ErrTenantInactive is returned when the tenant exists but has been
	// deactivated; no handle is opened or cached.
	ErrTenantInactive = errors.New("store: tenant inactive")

	// ErrMalformedAddress is returned when the base store address carries
	// no path separator to substitute the tenant database into. This is a
	// configuration error and fatal to the call.
	ErrMalformedAddress = errors.New("store: malformed base address")

	// ErrInvalidSubdomain is returned when a tenant subdomain cannot be
	// used to derive a store address.
	ErrInvalidSubdomain = errors.New("store: invalid subdomain")
)

// ConnError wraps a failure to open or operate on an underlying store
// connection.
type ConnError struct {
	Address string
	Op      string
	Cause   error
}

func (e *ConnError) Error() string {
	return "store: " + e.Op + " " + e.Address + ": " + e.Cause.Error()
}

func (e *ConnError) Unwrap() error { return e.Cause }

// NewConnError creates a ConnError for the given operation and address.
func NewConnError(op, address string, cause error) *ConnError {
	return &ConnError{Address: address, Op: op, Cause: cause}
}

// IsConnError reports whether err is (or wraps) a ConnError.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}
