package davincikit

import "github.com/pingidentity/davincikit/apierror"

// ApiError is re-exported at the root so callers of davincikit.Client
// can type-assert on davincikit.ApiError without reaching into the
// apierror package directly; the canonical definition lives there so
// the OIDC/push/device subpackages can construct one without an import
// cycle back through this package.
type ApiError = apierror.ApiError

var NewApiError = apierror.New

var (
	ErrUnauthorized = apierror.ErrUnauthorized
	ErrForbidden    = apierror.ErrForbidden
	ErrNotFound     = apierror.ErrNotFound
	ErrConflict     = apierror.ErrConflict
	ErrRateLimit    = apierror.ErrRateLimit
	ErrServer       = apierror.ErrServer
)
