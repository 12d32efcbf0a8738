package middleware

import (
	"net/http"
	"strings"

	"github.com/obinnaeke/tradelane-backend/api/responses"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
	"github.com/obinnaeke/tradelane-backend/pkg/security"
)

const maintenanceSecretHeader = "X-Maintenance-Secret"

// MaintenanceSecret guards the sweep/prune endpoints with a shared secret
// verified against a pre-configured argon2id hash. These routes bypass JWT
// auth: the caller is an external scheduler, not a user.
func MaintenanceSecret(secretHash string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimSpace(r.Header.Get(maintenanceSecretHeader))
			if presented == "" || secretHash == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing maintenance credentials"))
				return
			}

			ok, err := security.VerifySecret(presented, secretHash)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify maintenance secret"))
				return
			}
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid maintenance credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
