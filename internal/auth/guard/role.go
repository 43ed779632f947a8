package guard

import (
	"net/http"

	"github.com/AlibekovAA/fincore/internal/account/domain"
	"github.com/AlibekovAA/fincore/internal/auth/service"
	commonhttp "github.com/AlibekovAA/fincore/internal/common/http"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

// RequireRole must run behind Guard.Middleware.
func RequireRole(log *logger.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := AccountFromContext(r.Context())
			if !ok {
				commonhttp.HandleError(w, r, service.ErrUnauthenticated, log)
				return
			}
			if !account.HasRole(roles...) {
				log.WithFields(r.Context(), logger.Fields{
					"account_id": string(account.ID),
					"role":       string(account.Role),
					"action":     "role_denied",
				}).Warn("account lacks required role")
				commonhttp.HandleError(w, r, service.ErrForbidden, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
